package batch

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// Query is the payload sent to the echo endpoint.
type Query struct {
	Value uint32 `json:"value"`
}

// Reply is the part of the echo response we care about. The echo service
// nests the original request body under "json".
type Reply struct {
	JSON *struct {
		Value *uint32 `json:"value"`
	} `json:"json"`
}

func newQuery() Query {
	return Query{Value: MinValue + rand.Uint32N(MaxValue-MinValue+1)}
}

// encodeQuery panics on failure: Query has a static shape and always encodes.
func encodeQuery(q Query) []byte {
	data, err := json.Marshal(q)
	if err != nil {
		panic(fmt.Sprintf("unexpected failure encoding query %+v: %v", q, err))
	}
	return data
}

// parseReply extracts the echoed value from a reply body.
func parseReply(body []byte) (uint32, error) {
	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if reply.JSON == nil {
		return 0, fmt.Errorf("%w: missing field \"json\"", ErrParse)
	}
	if reply.JSON.Value == nil {
		return 0, fmt.Errorf("%w: missing field \"json.value\"", ErrParse)
	}
	return *reply.JSON.Value, nil
}
