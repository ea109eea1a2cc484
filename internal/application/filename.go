package application

import (
	"fmt"
	"time"
)

// CaptureFilename формирует имя файла снимка по времени съемки:
// capture-DDMMYYYYHHMMSS.jpg
func CaptureFilename(t time.Time) string {
	return fmt.Sprintf("capture-%s.jpg", t.Format("02012006150405"))
}
