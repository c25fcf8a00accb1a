package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKitIntegrationTagHelpers(t *testing.T) {
	k := &KitIntegration{}
	assert.Nil(t, k.FreeTags())
	assert.Nil(t, k.PaidTags())

	k.SetFreeTags([]string{"11", "12"})
	k.SetPaidTags([]string{"21"})
	assert.Equal(t, "11,12", k.FreeTagIDs)
	assert.Equal(t, []string{"11", "12"}, k.FreeTags())
	assert.Equal(t, []string{"21"}, k.PaidTags())

	// Stored values may carry whitespace or stray commas from older rows.
	k.FreeTagIDs = " 11 , ,12,"
	assert.Equal(t, []string{"11", "12"}, k.FreeTags())

	k.SetFreeTags(nil)
	assert.Empty(t, k.FreeTagIDs)
	assert.Nil(t, k.FreeTags())
}
