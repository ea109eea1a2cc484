package web

import (
	"net/url"

	"hd-camera/internal/application"
)

// Типы сообщений между страницей и сервером
const (
	msgDevices    = "devices"
	msgStatus     = "status"
	msgAlert      = "alert"
	msgDownload   = "download"
	msgSelect     = "select"
	msgCapture    = "capture"
	msgKey        = "key"
	msgVisibility = "visibility"
)

// inbound сообщение от страницы
type inbound struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId,omitempty"`
	Code     string `json:"code,omitempty"`
	Key      string `json:"key,omitempty"`
	State    string `json:"state,omitempty"`
}

// deviceView камера в списке выбора
type deviceView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// statusView состояние сессии для страницы
type statusView struct {
	SelectedDeviceID string `json:"selectedDeviceId"`
	Streaming        bool   `json:"streaming"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	WakeLockHeld     bool   `json:"wakeLockHeld"`
	WakeLockText     string `json:"wakeLockText"`
	KeyHint          string `json:"keyHint"`
	Guidance         string `json:"guidance,omitempty"`
	LastCapture      string `json:"lastCapture,omitempty"`
}

// outbound сообщение для страницы
type outbound struct {
	Type     string       `json:"type"`
	Devices  []deviceView `json:"devices,omitempty"`
	Selected string       `json:"selected,omitempty"`
	Status   *statusView  `json:"status,omitempty"`
	Message  string       `json:"message,omitempty"`
	Name     string       `json:"name,omitempty"`
	URL      string       `json:"url,omitempty"`
}

func devicesMessage(st application.Status) outbound {
	views := make([]deviceView, 0, len(st.Devices))
	for _, d := range st.Devices {
		views = append(views, deviceView{ID: d.ID, Label: d.DisplayLabel()})
	}
	return outbound{Type: msgDevices, Devices: views, Selected: st.SelectedDeviceID}
}

func statusMessage(st application.Status) outbound {
	return outbound{Type: msgStatus, Status: &statusView{
		SelectedDeviceID: st.SelectedDeviceID,
		Streaming:        st.Streaming,
		Width:            st.Width,
		Height:           st.Height,
		WakeLockHeld:     st.WakeLockHeld,
		WakeLockText:     st.WakeLockText,
		KeyHint:          st.KeyHint,
		Guidance:         st.Guidance,
		LastCapture:      st.LastCapture,
	}}
}

func captureURL(name string) string {
	return "/captures/" + url.PathEscape(name)
}
