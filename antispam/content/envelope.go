package content

import (
	"encoding/json"
	"fmt"
)

// Wire form of an Item: kind tag plus the kind-specific JSON body.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Item json.RawMessage `json:"item"`
}

func NewEnvelope(item Item) (*Envelope, error) {
	raw, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	return &Envelope{Kind: item.Ref().Kind, Item: raw}, nil
}

func (e *Envelope) Decode() (Item, error) {
	var item Item
	switch e.Kind {
	case KindDocument:
		item = &Document{}
	case KindMessage:
		item = &Message{}
	case KindThread:
		item = &Thread{}
	case KindBlogPost:
		item = &BlogPost{}
	case KindExternalURL:
		item = &ExternalURL{}
	default:
		return nil, fmt.Errorf("unknown content kind: %q", e.Kind)
	}
	if err := json.Unmarshal(e.Item, item); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", e.Kind, err)
	}
	return item, nil
}
