package usecase

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-relay/domain"
)

func TestHistoryStore_EvictsOldest(t *testing.T) {
	store := NewHistoryStore(testPersona(t, 2))

	store.Append("c1", "u1", "b1")
	store.Append("c1", "u2", "b2")
	store.Append("c1", "u3", "b3")

	got := store.Get("c1")
	require.Len(t, got, 2)
	assert.Equal(t, []domain.Exchange{
		domain.NewExchange("u2", "b2"),
		domain.NewExchange("u3", "b3"),
	}, got)
}

func TestHistoryStore_Bounded(t *testing.T) {
	const window = 3
	for n := 0; n <= 10; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			store := NewHistoryStore(testPersona(t, window))
			for i := 0; i < n; i++ {
				store.Append("c", fmt.Sprintf("u%d", i), fmt.Sprintf("b%d", i))
			}

			got := store.Get("c")
			want := min(n, window)
			require.Len(t, got, want)

			turns := 0
			for i, ex := range got {
				turns += 2
				idx := n - want + i
				assert.Equal(t, fmt.Sprintf("u%d", idx), ex.User.Text)
				assert.Equal(t, fmt.Sprintf("b%d", idx), ex.Model.Text)
				assert.Equal(t, domain.UserRole, ex.User.Role)
				assert.Equal(t, domain.ModelRole, ex.Model.Role)
			}
			assert.LessOrEqual(t, turns, 2*window)
		})
	}
}

func TestHistoryStore_GetRegistersChannel(t *testing.T) {
	store := NewHistoryStore(testPersona(t, 2))
	assert.Equal(t, 0, store.Channels())

	assert.Equal(t, 0, store.Len("unseen"))
	assert.Equal(t, 0, store.Channels())

	assert.Empty(t, store.Get("unseen"))
	assert.Equal(t, 1, store.Channels())
}

func TestHistoryStore_GetReturnsCopy(t *testing.T) {
	store := NewHistoryStore(testPersona(t, 2))
	store.Append("c", "u", "b")

	got := store.Get("c")
	got[0].Model.Text = "mutated"

	assert.Equal(t, "b", store.Get("c")[0].Model.Text)
}

func TestHistoryStore_ConcurrentChannels(t *testing.T) {
	store := NewHistoryStore(testPersona(t, 5))

	var wg sync.WaitGroup
	for c := 0; c < 8; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			ch := fmt.Sprintf("c%d", c)
			for i := 0; i < 50; i++ {
				store.Append(ch, "u", "b")
				_ = store.Get(ch)
			}
		}(c)
	}
	wg.Wait()

	for c := 0; c < 8; c++ {
		assert.Equal(t, 5, store.Len(fmt.Sprintf("c%d", c)))
	}
}

func TestNewHistoryStore_UsesPersonaWindow(t *testing.T) {
	store := NewHistoryStore(testPersona(t, 4))
	assert.Equal(t, 4, store.Window())

	_, err := domain.NewPersona(domain.Persona{Name: "Cocoa", ShortTermWindow: 0})
	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "persona.short_term_window", cfgErr.Key)
}
