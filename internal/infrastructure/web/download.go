package web

import (
	"context"

	"hd-camera/internal/application"
)

// DownloadOffer сохраняет снимок и сразу предлагает страницам его скачать
type DownloadOffer struct {
	next application.Downloader
	hub  *Hub
}

// NewDownloadOffer оборачивает хранилище снимков
func NewDownloadOffer(next application.Downloader, hub *Hub) *DownloadOffer {
	return &DownloadOffer{next: next, hub: hub}
}

// Save сохраняет снимок и отправляет ссылку на скачивание
func (d *DownloadOffer) Save(ctx context.Context, filename string, data []byte) (string, error) {
	name, err := d.next.Save(ctx, filename, data)
	if err != nil {
		return "", err
	}
	d.hub.Offer(ctx, name)
	return name, nil
}
