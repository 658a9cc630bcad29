package provider

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innersight/internal/config"
)

func testProviders() []Config {
	return []Config{
		{ID: "deepseek", Endpoint: "https://api.deepseek.com/chat/completions", Model: "deepseek-reasoner", Credential: "sk-1", Reasoning: true},
		{ID: "openai", Endpoint: "https://api.openai.com/v1/chat/completions", Model: "gpt-4o-mini", Credential: "sk-2"},
	}
}

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry(testProviders(), "deepseek")
	require.NoError(t, err)

	assert.Equal(t, "deepseek", r.Active().ID)
	assert.True(t, r.Active().Reasoning)
	assert.Len(t, r.List(), 2)
	assert.Equal(t, "openai", r.List()[1].ID)
}

func TestNewRegistryErrors(t *testing.T) {
	_, err := NewRegistry(nil, "x")
	assert.Error(t, err)

	_, err = NewRegistry(testProviders(), "mistral")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	dup := append(testProviders(), Config{ID: "OpenAI"})
	_, err = NewRegistry(dup, "openai")
	assert.ErrorContains(t, err, "duplicate provider")
}

func TestSetActive(t *testing.T) {
	r, err := NewRegistry(testProviders(), "deepseek")
	require.NoError(t, err)

	r.SetActive("OPENAI")
	assert.Equal(t, "openai", r.Active().ID)

	assert.Panics(t, func() { r.SetActive("mistral") })
	assert.Equal(t, "openai", r.Active().ID, "failed switch must not change the active provider")
}

func TestActiveReturnsCopy(t *testing.T) {
	r, err := NewRegistry(testProviders(), "openai")
	require.NoError(t, err)

	c := r.Active()
	c.Model = "mutated"
	assert.Equal(t, "gpt-4o-mini", r.Active().Model)
}

func TestResolve(t *testing.T) {
	r, err := NewRegistry(testProviders(), "deepseek")
	require.NoError(t, err)

	c, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "deepseek", c.ID)

	c, err = r.Resolve("openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", c.ID)
	assert.Equal(t, "deepseek", r.Active().ID)

	_, err = r.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.False(t, r.Has("nope"))
}

func TestConcurrentSwitchNeverTorn(t *testing.T) {
	r, err := NewRegistry(testProviders(), "deepseek")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%2 == 0 {
					r.SetActive("openai")
				} else {
					r.SetActive("deepseek")
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c := r.Active()
				switch c.ID {
				case "openai":
					assert.Equal(t, "gpt-4o-mini", c.Model)
				case "deepseek":
					assert.Equal(t, "deepseek-reasoner", c.Model)
				default:
					t.Errorf("unexpected provider %q", c.ID)
				}
			}
		}()
	}
	wg.Wait()
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig(config.AI{
		Active: "openai",
		Providers: map[string]config.ProviderConfig{
			"openai": {Endpoint: "https://api.openai.com/v1/chat/completions", Model: "gpt-4o-mini", APIKey: "secret-key"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "secret-key", r.Active().Credential)
	assert.True(t, r.Active().HasCredential())
	assert.NotContains(t, r.Active().String(), "secret")
}
