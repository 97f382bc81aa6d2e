package nonce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVerifyCurrentTick(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	v := NewWithClock("s3cret", func() time.Time { return now })

	tok := v.Issue(FlowCheckout)
	assert.True(t, v.Verify(FlowCheckout, tok))
}

func TestVerifyPreviousTickStillValid(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	v := NewWithClock("s3cret", func() time.Time { return issued })
	tok := v.Issue(FlowCheckout)

	later := issued.Add(13 * time.Hour)
	v2 := NewWithClock("s3cret", func() time.Time { return later })
	assert.True(t, v2.Verify(FlowCheckout, tok))
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	v := NewWithClock("s3cret", func() time.Time { return issued })
	tok := v.Issue(FlowCheckout)

	later := issued.Add(30 * time.Hour)
	v2 := NewWithClock("s3cret", func() time.Time { return later })
	assert.False(t, v2.Verify(FlowCheckout, tok))
}

func TestVerifyRejectsWrongFlowAndSecret(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	v := NewWithClock("s3cret", func() time.Time { return now })
	tok := v.Issue(FlowCheckout)

	assert.False(t, v.Verify("other-flow", tok))
	assert.False(t, v.Verify(FlowCheckout, ""))

	other := NewWithClock("different", func() time.Time { return now })
	assert.False(t, other.Verify(FlowCheckout, tok))
}
