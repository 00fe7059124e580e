package common

import "strings"

// RewardKind: тип ежедневной награды.
type RewardKind string

// Поддерживаемые типы наград
const (
	KindBroadcasterDaily RewardKind = "broadcaster_daily" // Стример вышел в эфир
	KindViewerDaily      RewardKind = "viewer_daily"      // Зритель посмотрел эфир
)

// RewardKinds: все известные типы в стабильном порядке.
var RewardKinds = []RewardKind{KindBroadcasterDaily, KindViewerDaily}

// ParseRewardKind разбирает тип награды. Принимает и короткие имена: "broadcaster", "viewer".
func ParseRewardKind(s string) (RewardKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(KindBroadcasterDaily), "broadcaster":
		return KindBroadcasterDaily, nil
	case string(KindViewerDaily), "viewer":
		return KindViewerDaily, nil
	}
	return "", ErrUnknownRewardKind
}

// Valid проверяет, что тип известен.
func (k RewardKind) Valid() bool {
	return k == KindBroadcasterDaily || k == KindViewerDaily
}

// Title возвращает человекочитаемое название награды.
func (k RewardKind) Title() string {
	switch k {
	case KindBroadcasterDaily:
		return "Ежедневная награда стримера"
	case KindViewerDaily:
		return "Ежедневная награда зрителя"
	}
	return string(k)
}
