package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt("Beijing cultural exchange", 7, 2)
	assert.Contains(t, p, "CONTEXT: Beijing cultural exchange")
	assert.Contains(t, p, "AMBIGUITY LEVEL: 7/10")
	assert.Contains(t, p, "NOISE LEVEL: 2/10")
	assert.Contains(t, p, "AMBIGUITY=0 RULE")
	assert.Contains(t, p, `"stability," "harmony," "development," "cooperation"`)
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt("NSF grant", "One two  three\nfour", 0, 3)
	assert.Contains(t, p, "ORIGINAL WORD COUNT: 4 words")
	assert.Contains(t, p, "(±10% maximum)")
	assert.Contains(t, p, "ORIGINAL TEXT:\nOne two  three\nfour\n")
	assert.Contains(t, p, "SUMMARY:\n[Your modification summary here]\n\nMODIFIED TEXT:")
}

func TestBuildPrompt(t *testing.T) {
	req := Request{Context: "c", Text: "a %s b", Ambiguity: 1, Noise: 2}
	p := BuildPrompt(req, 3000, 0.4)
	assert.Equal(t, 3000, p.MaxTokens)
	assert.Equal(t, 0.4, p.Temperature)
	assert.Contains(t, p.User, "a %s b", "text is inserted literally")
}
