package payment

import (
	"sort"

	"buddydesk/internal/domain/buddyrequest"
)

type priceKey struct {
	mode     buddyrequest.CommunicationMode
	duration int
}

// priceTable holds paid session prices in whole currency units.
var priceTable = map[priceKey]int64{
	{buddyrequest.ModeChat, 30}:  299,
	{buddyrequest.ModeChat, 60}:  499,
	{buddyrequest.ModeCall, 30}:  399,
	{buddyrequest.ModeCall, 60}:  599,
	{buddyrequest.ModeVideo, 30}: 499,
	{buddyrequest.ModeVideo, 60}: 799,
}

// PriceFor returns the fixed price of a paid session.
func PriceFor(mode buddyrequest.CommunicationMode, duration int) (int64, error) {
	amount, ok := priceTable[priceKey{mode, duration}]
	if !ok {
		return 0, ErrUnknownPrice
	}
	return amount, nil
}

// Catalog publishes the price table in the configured currency.
type Catalog struct {
	Currency string
}

func (c Catalog) Prices() []buddyrequest.PriceEntry {
	out := make([]buddyrequest.PriceEntry, 0, len(priceTable))
	for k, amount := range priceTable {
		out = append(out, buddyrequest.PriceEntry{Mode: k.mode, Duration: k.duration, Amount: amount, Currency: c.Currency})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount < out[j].Amount
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

// toSubunits converts whole units to the gateway's smallest unit.
func toSubunits(amount int64) int64 {
	return amount * 100
}
