// Package feed streams depth updates from exchange websockets into the book
// registry. Each symbol gets its own connection; the wire format is the
// common depth-delta shape with string-encoded price/quantity pairs.
package feed

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/execlab/tradecost/internal/domain"
)

// depthMessage is the wire shape of a depth update:
//
//	{"timestamp": 1700000000.123, "bids": [["50000","1.5"]], "asks": [["50100","0"]]}
//
// A quantity of "0" removes the level. The timestamp is epoch seconds.
type depthMessage struct {
	Timestamp float64     `json:"timestamp"`
	Bids      [][2]string `json:"bids"`
	Asks      [][2]string `json:"asks"`
}

// ParseDepthMessage decodes a raw depth update. Entries whose price or
// quantity does not parse as a number are dropped; only an undecodable
// envelope is an error.
func ParseDepthMessage(raw []byte) (domain.DepthDelta, error) {
	var msg depthMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.DepthDelta{}, fmt.Errorf("feed: decode depth message: %w", domain.ErrMalformedDelta)
	}

	delta := domain.DepthDelta{
		Bids: parseLevels(msg.Bids),
		Asks: parseLevels(msg.Asks),
	}
	if msg.Timestamp > 0 {
		sec, frac := math.Modf(msg.Timestamp)
		delta.Timestamp = time.Unix(int64(sec), int64(frac*float64(time.Second)))
	}
	return delta, nil
}

func parseLevels(pairs [][2]string) []domain.PriceLevel {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]domain.PriceLevel, 0, len(pairs))
	for _, pair := range pairs {
		price, err := strconv.ParseFloat(pair[0], 64)
		if err != nil {
			continue
		}
		quantity, err := strconv.ParseFloat(pair[1], 64)
		if err != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: price, Quantity: quantity})
	}
	return out
}
