package content

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// TokenCounter estimates how many model tokens a text costs.
type TokenCounter interface {
	Count(text string) int
}

// CharEstimator approximates tokens as runes divided by CharsPerToken.
type CharEstimator struct {
	CharsPerToken int
}

func (e CharEstimator) Count(text string) int {
	per := e.CharsPerToken
	if per <= 0 {
		per = DefaultCharsPerToken
	}
	n := utf8.RuneCountInString(text)
	return (n + per - 1) / per
}

// TiktokenCounter counts with a BPE encoding and falls back to the character
// estimate when the encoding cannot be loaded.
type TiktokenCounter struct {
	encoding string
	fallback CharEstimator

	once sync.Once
	enc  *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string, fallback CharEstimator) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding, fallback: fallback}
}

func (c *TiktokenCounter) load() {
	enc, err := tiktoken.GetEncoding(c.encoding)
	if err != nil {
		log.Warn().Err(err).Str("encoding", c.encoding).Msg("tiktoken encoding unavailable, using character estimate")
		return
	}
	c.enc = enc
}

func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(c.load)
	if c.enc == nil {
		return c.fallback.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
