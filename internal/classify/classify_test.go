package classify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtgraph/graphgen/internal/record"
)

var now = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

func fixedModel() *Model {
	m := DefaultModel()
	m.Now = func() time.Time { return now }
	return m
}

func TestFeatures(t *testing.T) {
	a := record.Account{
		Username:       "bot2024",
		DisplayName:    "Bot",
		CreatedAt:      now.Add(-9 * 24 * time.Hour),
		StatusesCount:  100,
		FollowersCount: 4,
		FriendsCount:   9,
	}
	f := Features(a, now)
	assert.Equal(t, 10.0, f[FeatureAge])
	assert.Equal(t, 10.0, f[FeatureTweetFrequency])
	assert.Equal(t, 9.0/5, f[FeatureFriendsFollowers])
	assert.Equal(t, 4.0/10, f[FeatureFollowersFriends])
	assert.Equal(t, 4.0, f[FeatureNameDigits])
	assert.Equal(t, 7.0, f[FeatureNameLength])
	assert.Equal(t, 0.0, f[FeatureDefaultProfile])
}

func TestFeatures_UnknownCreationDate(t *testing.T) {
	f := Features(record.Account{StatusesCount: 7}, now)
	assert.Equal(t, 1.0, f[FeatureAge])
	assert.Equal(t, 7.0, f[FeatureTweetFrequency])
}

func TestModel_SeparatesObviousCases(t *testing.T) {
	m := fixedModel()
	bot := record.Account{
		Username:       "user84729384",
		CreatedAt:      now.Add(-2 * 24 * time.Hour),
		StatusesCount:  5000,
		FriendsCount:   2000,
		FollowersCount: 3,
	}
	human := record.Account{
		Username:       "janedoe",
		DisplayName:    "Jane Doe",
		Description:    "Reporter covering science and climate. Opinions my own, retweets are not endorsements, etc.",
		BannerURL:      "https://example.org/banner.jpg",
		CreatedAt:      now.Add(-3650 * 24 * time.Hour),
		StatusesCount:  20000,
		FollowersCount: 50000,
		FriendsCount:   500,
		ListedCount:    100,
		Verified:       true,
	}

	botScore, err := m.Score(context.Background(), bot)
	require.NoError(t, err)
	humanScore, err := m.Score(context.Background(), human)
	require.NoError(t, err)

	assert.Greater(t, botScore, 0.9)
	assert.Less(t, humanScore, 0.1)
	assert.GreaterOrEqual(t, humanScore, 0.0)
}

func TestModel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fixedModel().Score(ctx, record.Account{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bias: 0.5\nweights:\n  verified: -2\n  name_digits: 1\n"), 0o644))

	m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.Bias)
	assert.Equal(t, -2.0, m.Weights[FeatureVerified])

	// no weighted feature is non-zero, so the score is sigmoid(bias)
	score, err := m.Score(context.Background(), record.Account{Username: "plain"})
	require.NoError(t, err)
	assert.InDelta(t, 0.6225, score, 1e-4)
}

func TestLoadModel_UnknownFeature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  shoe_size: 1\n"), 0o644))
	_, err := LoadModel(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shoe_size")
}

func TestFunc(t *testing.T) {
	var c Classifier = Func(func(context.Context, record.Account) (float64, error) { return 0.25, nil })
	s, err := c.Score(context.Background(), record.Account{})
	require.NoError(t, err)
	assert.Equal(t, 0.25, s)
}
