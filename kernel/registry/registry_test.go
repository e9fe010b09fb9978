package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offer(typeName, name, id string) entities.PermissionOffer {
	return entities.PermissionOffer{
		Type:         entities.TypeDescriptor{Name: typeName},
		ProposedName: name,
		ID:           id,
	}
}

func TestRegistry_Offer(t *testing.T) {
	r := NewRegistry()

	rec, err := r.Offer("npm:provider", offer("Asset", "Stash", "grant-1"))
	require.NoError(t, err)

	assert.Equal(t, entities.PermissionRecord{
		HostID:           "npm:provider",
		Type:             entities.TypeDescriptor{Name: "Asset"},
		HostPermissionID: "grant-1",
		ProposedName:     "Stash",
	}, rec)
	assert.Equal(t, 1, r.Len())

	_, err = r.Offer("", offer("Asset", "Stash", "grant-1"))
	assert.Error(t, err)
}

func TestRegistry_Match_SharedTypeOnly(t *testing.T) {
	r := NewRegistry()
	_, err := r.Offer("npm:a", offer("Asset", "First", "o1"))
	require.NoError(t, err)
	_, err = r.Offer("npm:b", offer("Asset", "Second", "o2"))
	require.NoError(t, err)
	_, err = r.Offer("npm:c", offer("erc20-token", "Token", "o3"))
	require.NoError(t, err)

	matched := r.Match(entities.TypeDescriptor{Name: "Asset", Description: "ignored"})
	require.Len(t, matched, 2)
	assert.Equal(t, "o1", matched[0].HostPermissionID)
	assert.Equal(t, "o2", matched[1].HostPermissionID)

	other := r.Match(entities.TypeDescriptor{Name: "Puddin"})
	assert.Empty(t, other)

	tokens := r.Match(entities.TypeDescriptor{Name: "erc20-token"})
	require.Len(t, tokens, 1)
	assert.Equal(t, "npm:c", tokens[0].HostID)
}

func TestRegistry_Match_ReturnsCopies(t *testing.T) {
	r := NewRegistry()
	_, err := r.Offer("npm:a", offer("Asset", "First", "o1"))
	require.NoError(t, err)

	matched := r.Match(entities.TypeDescriptor{Name: "Asset"})
	matched[0].HostID = "tampered"

	assert.Equal(t, "npm:a", r.Records()[0].HostID)
}

func TestRegistry_Duplicates(t *testing.T) {
	t.Run("allowed by default", func(t *testing.T) {
		r := NewRegistry()
		for i := 0; i < 2; i++ {
			_, err := r.Offer("npm:a", offer("Asset", "First", "o1"))
			require.NoError(t, err)
		}
		assert.Len(t, r.Match(entities.TypeDescriptor{Name: "Asset"}), 2)
	})

	t.Run("rejected when configured", func(t *testing.T) {
		r := NewRegistry(WithDuplicatePolicy(policy.DuplicateReject))
		_, err := r.Offer("npm:a", offer("Asset", "First", "o1"))
		require.NoError(t, err)

		_, err = r.Offer("npm:a", offer("Asset", "Renamed", "o1"))
		var dup *DuplicateOfferError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "o1", dup.HostPermissionID)

		// same id from another host is a different key
		_, err = r.Offer("npm:b", offer("Asset", "First", "o1"))
		require.NoError(t, err)
		assert.Equal(t, 2, r.Len())
	})
}

func TestRegistry_WithMatchPolicy(t *testing.T) {
	r := NewRegistry(WithMatchPolicy(policy.MatchFunc(func(offered, requested entities.TypeDescriptor) bool {
		return offered.Description == requested.Description
	})))
	_, err := r.Offer("npm:a", entities.PermissionOffer{
		Type: entities.TypeDescriptor{Name: "x", Description: "fungible"}, ProposedName: "n", ID: "1",
	})
	require.NoError(t, err)

	assert.Len(t, r.Match(entities.TypeDescriptor{Name: "y", Description: "fungible"}), 1)
}

func TestRegistry_ConcurrentOffers(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Offer(fmt.Sprintf("npm:p%d", i), offer("Asset", "n", "id"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Match(entities.TypeDescriptor{Name: "Asset"}), 50)
}
