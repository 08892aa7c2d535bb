package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Deterministic(t *testing.T) {
	c := NewClassifier()

	key1, label1 := c.Topic("How do refunds work?")
	key2, label2 := c.Topic("How do refunds work?")

	assert.Equal(t, key1, key2)
	assert.Equal(t, label1, label2)
	assert.NotEmpty(t, key1)
}

func TestClassifier_WordOrderInvariant(t *testing.T) {
	c := NewClassifier()

	key1, _ := c.Topic("cancel my subscription")
	key2, _ := c.Topic("subscription cancel")

	assert.Equal(t, key1, key2)
}

func TestClassifier_FoldsPlurals(t *testing.T) {
	c := NewClassifier()

	key1, _ := c.Topic("how do refunds work")
	key2, _ := c.Topic("how does a refund work")

	assert.Equal(t, key1, key2)
}

func TestClassifier_IgnoresStopwordsAndCase(t *testing.T) {
	c := NewClassifier()

	key1, _ := c.Topic("What is the Billing Policy?")
	key2, _ := c.Topic("billing policy")

	assert.Equal(t, key1, key2)
}

func TestClassifier_FallbackTopic(t *testing.T) {
	c := NewClassifier()

	for _, query := range []string{"", "   ", "??", "is it the"} {
		key, label := c.Topic(query)
		assert.Equal(t, "general", key, "query %q", query)
		assert.Equal(t, "general", label)
	}
}

func TestClassifier_KeyIsSlug(t *testing.T) {
	c := NewClassifier()

	key, _ := c.Topic("API rate limits & quotas")
	assert.Regexp(t, `^[a-z0-9-]+$`, key)
}

func TestClassifier_DistinctTopicsStayDistinct(t *testing.T) {
	c := NewClassifier()

	refunds, _ := c.Topic("refund policy")
	shipping, _ := c.Topic("shipping times")

	assert.NotEqual(t, refunds, shipping)
}
