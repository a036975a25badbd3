// Package classify scores how likely an account is to be automated.
package classify

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"

	"rtgraph/graphgen/internal/record"
)

// Classifier returns a bot likelihood in [0,1] for an account
type Classifier interface {
	Score(ctx context.Context, a record.Account) (float64, error)
}

// Func adapts a plain function to Classifier
type Func func(ctx context.Context, a record.Account) (float64, error)

func (f Func) Score(ctx context.Context, a record.Account) (float64, error) { return f(ctx, a) }

// Feature names understood by Model
const (
	FeatureStatuses          = "statuses_count"
	FeatureFollowers         = "followers_count"
	FeatureFavourites        = "favourites_count"
	FeatureFriends           = "friends_count"
	FeatureListed            = "listed_count"
	FeatureDefaultProfile    = "default_profile"
	FeatureBackgroundImage   = "profile_use_background_image"
	FeatureVerified          = "verified"
	FeatureAge               = "age"
	FeatureTweetFrequency    = "tweet_frequence"
	FeatureFollowersGrowth   = "followers_growth_rate"
	FeatureFriendsGrowth     = "friends_growth_rate"
	FeatureFavouritesGrowth  = "favourites_growth_rate"
	FeatureListedGrowth      = "listed_growth_rate"
	FeatureFriendsFollowers  = "friends_followers_ratio"
	FeatureFollowersFriends  = "followers_friend_ratio"
	FeatureNameLength        = "name_length"
	FeatureScreenNameLength  = "screenname_length"
	FeatureNameDigits        = "name_digits"
	FeatureScreenNameDigits  = "screen_name_digits"
	FeatureDescriptionLength = "description_length"
)

// Features extracts the profile features of a at instant now. Age is in
// days and never below 1 so the growth rates stay finite.
func Features(a record.Account, now time.Time) map[string]float64 {
	age := 1.0
	if !a.CreatedAt.IsZero() {
		age = math.Floor(now.Sub(a.CreatedAt).Hours()/24) + 1
		if age < 1 {
			age = 1
		}
	}
	statuses := float64(a.StatusesCount)
	followers := float64(a.FollowersCount)
	friends := float64(a.FriendsCount)
	favourites := float64(a.FavouritesCount)
	listed := float64(a.ListedCount)

	return map[string]float64{
		FeatureStatuses:          statuses,
		FeatureFollowers:         followers,
		FeatureFavourites:        favourites,
		FeatureFriends:           friends,
		FeatureListed:            listed,
		FeatureDefaultProfile:    boolFeature(a.Description != ""),
		FeatureBackgroundImage:   boolFeature(a.BannerURL != ""),
		FeatureVerified:          boolFeature(a.Verified),
		FeatureAge:               age,
		FeatureTweetFrequency:    statuses / age,
		FeatureFollowersGrowth:   followers / age,
		FeatureFriendsGrowth:     friends / age,
		FeatureFavouritesGrowth:  favourites / age,
		FeatureListedGrowth:      listed / age,
		FeatureFriendsFollowers:  friends / (followers + 1),
		FeatureFollowersFriends:  followers / (friends + 1),
		FeatureNameLength:        float64(len([]rune(a.Username))),
		FeatureScreenNameLength:  float64(len([]rune(a.DisplayName))),
		FeatureNameDigits:        float64(digits(a.Username)),
		FeatureScreenNameDigits:  float64(digits(a.DisplayName)),
		FeatureDescriptionLength: float64(len([]rune(a.Description))),
	}
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// Model is a logistic model over Features. Every feature value is passed
// through log1p before weighting so counts and rates share a scale.
type Model struct {
	Bias    float64            `yaml:"bias"`
	Weights map[string]float64 `yaml:"weights"`
	// Now pins the reference instant for account age; zero means time.Now
	Now func() time.Time `yaml:"-"`
}

// DefaultModel favours young, hyperactive, follow-heavy accounts with
// digit-laden handles and empty profiles.
func DefaultModel() *Model {
	return &Model{
		Bias: -1.0,
		Weights: map[string]float64{
			FeatureTweetFrequency:    0.9,
			FeatureFriendsFollowers:  0.8,
			FeatureNameDigits:        0.6,
			FeatureAge:               -0.35,
			FeatureFollowersGrowth:   -0.2,
			FeatureListedGrowth:      -0.8,
			FeatureVerified:          -3.0,
			FeatureDefaultProfile:    -0.7,
			FeatureBackgroundImage:   -0.5,
			FeatureDescriptionLength: -0.1,
		},
	}
}

// LoadModel reads a Model from a YAML file. Unknown feature names are rejected.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classifier model: %w", err)
	}
	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse classifier model: %w", err)
	}
	known := Features(record.Account{}, time.Time{})
	var unknown []string
	for name := range m.Weights {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("classifier model %s: unknown features %v", path, unknown)
	}
	return &m, nil
}

// Score implements Classifier
func (m *Model) Score(ctx context.Context, a record.Account) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	z := m.Bias
	for name, v := range Features(a, now) {
		if w, ok := m.Weights[name]; ok {
			z += w * math.Log1p(math.Max(v, 0))
		}
	}
	return 1 / (1 + math.Exp(-z)), nil
}
