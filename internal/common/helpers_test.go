package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPluralizeCoins(t *testing.T) {
	cases := map[int64]string{
		0:   "монет",
		1:   "монета",
		2:   "монеты",
		5:   "монет",
		11:  "монет",
		12:  "монет",
		21:  "монета",
		22:  "монеты",
		25:  "монет",
		101: "монета",
		-3:  "монеты",
	}
	for n, want := range cases {
		assert.Equal(t, want, PluralizeCoins(n), "n=%d", n)
	}
}

func TestFormatNumberAndAmounts(t *testing.T) {
	assert.Equal(t, "999 975", FormatNumber(999975))
	assert.Equal(t, "1 000 000", FormatNumber(1_000_000))
	assert.Equal(t, "-5 000", FormatNumber(-5000))
	assert.Equal(t, "25 монет", FormatBalance(25))
	assert.Equal(t, "+1 монета", FormatCoinsAmount(1))
	assert.Equal(t, "-12 монет", FormatCoinsAmount(-12))
}

func TestRewardDateIsUTCMidnight(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	// 01:30 по Москве: это ещё предыдущий день по UTC
	local := time.Date(2026, 10, 18, 1, 30, 0, 0, msk)

	day := RewardDate(local)
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, "2026-10-17", FormatDate(local))
}

func TestParseRewardKind(t *testing.T) {
	k, err := ParseRewardKind("viewer")
	require.NoError(t, err)
	assert.Equal(t, KindViewerDaily, k)

	k, err = ParseRewardKind(" BROADCASTER_DAILY ")
	require.NoError(t, err)
	assert.Equal(t, KindBroadcasterDaily, k)

	_, err = ParseRewardKind("weekly")
	assert.ErrorIs(t, err, ErrUnknownRewardKind)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "10 часов", FormatAge(10*time.Hour+20*time.Minute))
	assert.Equal(t, "1 час", FormatAge(time.Hour))
	assert.Equal(t, "2 часа", FormatAge(2*time.Hour))
}
