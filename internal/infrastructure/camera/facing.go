package camera

import (
	"strings"

	"hd-camera/internal/domain"
)

// Драйверы V4L2 не сообщают направление камеры, поэтому тыловую
// камеру ищем по имени устройства.
var environmentHints = []string{"environment", "rear", "back", "world", "тыл"}

// PreferEnvironment возвращает ID камеры, похожей на тыловую, или пустую строку
func PreferEnvironment(devices []domain.VideoDevice) string {
	for _, d := range devices {
		label := strings.ToLower(d.Label)
		for _, hint := range environmentHints {
			if strings.Contains(label, hint) {
				return d.ID
			}
		}
	}
	return ""
}
