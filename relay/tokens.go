package relay

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/fbarrios/folio/provider"
)

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func loadCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			rlog.Warn("tokenizer unavailable, using character estimate", "err", err)
			return
		}
		codec = enc
	})
	return codec
}

// countTokens estimates the prompt size of system plus messages. Upstream
// models tokenize differently; cl100k is close enough for a budget check.
func countTokens(system string, messages []provider.Message) int {
	enc := loadCodec()
	count := func(s string) int {
		if s == "" {
			return 0
		}
		if enc != nil {
			if ids, _, err := enc.Encode(s); err == nil {
				return len(ids)
			}
		}
		return (len(s) + 3) / 4
	}

	// Each message carries a few tokens of role framing.
	const perMessage = 4
	total := count(system)
	for _, m := range messages {
		total += perMessage + count(m.Content)
	}
	return total
}
