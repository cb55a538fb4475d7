package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopping-assistant/internal/models"
)

func TestLoadProfile_EmptyPathGivesDefault(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "₱", p.Store.Currency)
	assert.NotEmpty(t, p.FAQs)
	assert.NotEmpty(t, p.Messages.ConsentRefusal)
}

func TestLoadProfile_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"store": {"name": "Gear Hub", "currency": "$"},
		"faqs": [{"question": "Do you ship abroad?", "answer": "No.", "category": "shipping"}],
		"messages": {"rateLimited": "Busy, try later."}
	}`), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "Gear Hub", p.Store.Name)
	assert.Equal(t, "$", p.Store.Currency)
	assert.Len(t, p.FAQs, 1)
	assert.Equal(t, p.FAQs, p.Store.FAQs)
	assert.Equal(t, "Busy, try later.", p.Messages.RateLimited)
	assert.NotEmpty(t, p.Messages.GenericFailure, "unset messages keep their default")
}

func TestLoadProfile_Errors(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"faqs": [{"question": "q"}]}`), 0o600))
	_, err = LoadProfile(bad)
	assert.Error(t, err)
}

func TestWarrantyFAQ(t *testing.T) {
	f, ok := WarrantyFAQ(DefaultProfile().FAQs)
	require.True(t, ok)
	assert.Equal(t, "warranty", f.Category)

	f, ok = WarrantyFAQ([]models.FAQ{{Question: "My unit is defective, what now?", Answer: "Send it back."}})
	require.True(t, ok)
	assert.Equal(t, "Send it back.", f.Answer)

	_, ok = WarrantyFAQ(nil)
	assert.False(t, ok)
}

func TestStoreProfile_AddFAQAndSave(t *testing.T) {
	p := DefaultProfile()
	before := len(p.FAQs)

	require.NoError(t, p.AddFAQ(models.FAQ{
		ID:       "faq-pickup",
		Question: "Can I pick up my order?",
		Answer:   "Yes, at our Quezon City branch.",
		Category: "shipping",
	}))
	assert.Len(t, p.FAQs, before+1)
	assert.Equal(t, p.FAQs, p.Store.FAQs)
	assert.NotEmpty(t, p.LastUpdated)

	assert.Error(t, p.AddFAQ(models.FAQ{ID: "faq-pickup", Question: "q", Answer: "a"}), "duplicate id")
	assert.Error(t, p.AddFAQ(models.FAQ{Question: "q", Answer: "a"}), "missing id")
	assert.Len(t, p.FAQs, before+1)

	path := filepath.Join(t.TempDir(), "nested", "store.json")
	require.NoError(t, SaveProfile(p, path))

	loaded, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, p.FAQs, loaded.FAQs)
	assert.Equal(t, p.Store.Name, loaded.Store.Name)
}

func TestStoreProfile_ValidateRejectsDuplicateIDs(t *testing.T) {
	p := DefaultProfile()
	p.FAQs = append(p.FAQs, p.FAQs[0])
	assert.Error(t, p.Validate())
}
