package llm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/chris/tally/internal/catalog"
)

// Chat message framing constants. These come from how the service wraps each
// message (<|start|>{role}\n{content}<|end|>\n) and are not tunable.
const (
	tokensPerMessage = 4
	tokensPerName    = -1 // role is implied when a name is present
	replyPriming     = 2  // <|start|>assistant
)

// FallbackEncoding is used for models that have no dedicated encoder.
const FallbackEncoding = tokenizer.Cl100kBase

var encodings = map[string]tokenizer.Encoding{
	string(tokenizer.Cl100kBase): tokenizer.Cl100kBase,
	string(tokenizer.O200kBase):  tokenizer.O200kBase,
	string(tokenizer.P50kBase):   tokenizer.P50kBase,
	string(tokenizer.R50kBase):   tokenizer.R50kBase,
}

// Counter computes the prompt-side token cost of a message sequence. Encoders
// are loaded once and cached; Count is otherwise a pure function of its input.
type Counter struct {
	mu     sync.Mutex
	codecs map[string]tokenizer.Codec
}

func NewCounter() *Counter {
	return &Counter{codecs: make(map[string]tokenizer.Codec)}
}

// Count returns the number of tokens the messages will occupy in a request to
// the given model, including reply priming.
func (c *Counter) Count(messages []Message, model catalog.Profile) (int, error) {
	codec, err := c.codec(model)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, m := range messages {
		n, err := encodedLen(codec, m.Content)
		if err != nil {
			return 0, fmt.Errorf("encoding %s message: %w", m.Role, err)
		}
		total += tokensPerMessage + n
		if m.Name != "" {
			n, err := encodedLen(codec, m.Name)
			if err != nil {
				return 0, fmt.Errorf("encoding name %q: %w", m.Name, err)
			}
			total += n + tokensPerName
		}
	}
	return total + replyPriming, nil
}

// CountText returns the encoded length of a single string.
func (c *Counter) CountText(text string, model catalog.Profile) (int, error) {
	codec, err := c.codec(model)
	if err != nil {
		return 0, err
	}
	return encodedLen(codec, text)
}

func encodedLen(codec tokenizer.Codec, s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	ids, _, err := codec.Encode(s)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// codec resolves the encoder for a model:
//   - an explicit tokenizer id must name a known encoding;
//   - otherwise the encoder registered for the model id is used;
//   - a model with no dedicated encoder falls back to FallbackEncoding.
func (c *Counter) codec(model catalog.Profile) (tokenizer.Codec, error) {
	if model.ID == "" {
		return nil, fmt.Errorf("%w: empty model id", ErrUnsupportedModel)
	}

	key := "model:" + model.ID
	if model.Tokenizer != "" {
		key = "enc:" + model.Tokenizer
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if codec, ok := c.codecs[key]; ok {
		return codec, nil
	}

	var (
		codec tokenizer.Codec
		err   error
	)
	if model.Tokenizer != "" {
		enc, ok := encodings[model.Tokenizer]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no encoder named %q", ErrUnsupportedModel, model.ID, model.Tokenizer)
		}
		codec, err = tokenizer.Get(enc)
	} else {
		codec, err = tokenizer.ForModel(tokenizer.Model(model.ID))
		if errors.Is(err, tokenizer.ErrModelNotSupported) {
			codec, err = tokenizer.Get(FallbackEncoding)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading encoder for %s: %v", ErrUnsupportedModel, model.ID, err)
	}
	c.codecs[key] = codec
	return codec, nil
}
