package model

type Provider string

const (
	ProviderDomestic      Provider = "domestic"
	ProviderInternational Provider = "international"
)

// binRange is an inclusive range of 6-digit card prefixes.
type binRange struct{ lo, hi int }

// Card prefixes issued inside the platform's primary market.
var domesticBINs = []binRange{
	{420000, 479999},
	{520000, 559999},
	{620000, 629999},
}

// RouteProvider classifies a card number (or bare BIN) by its first six
// digits. A missing or short prefix falls back to the domestic provider,
// which is the platform's primary market. Total over all inputs.
func RouteProvider(cardNumber string) Provider {
	bin := 0
	digits := 0
	for _, r := range cardNumber {
		if r < '0' || r > '9' {
			break
		}
		bin = bin*10 + int(r-'0')
		digits++
		if digits == 6 {
			break
		}
	}
	if digits < 6 {
		return ProviderDomestic
	}
	for _, rng := range domesticBINs {
		if bin >= rng.lo && bin <= rng.hi {
			return ProviderDomestic
		}
	}
	return ProviderInternational
}
