package web

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"hd-camera/internal/application"
	"hd-camera/internal/domain"
	"hd-camera/internal/infrastructure/imaging"
)

const (
	sendBuffer     = 16
	writeTimeout   = 5 * time.Second
	maxInboundSize = 4096
	previewQuality = 70
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Страница открывается с телефона в локальной сети
	},
}

// Controller операции сессии камеры, доступные странице
type Controller interface {
	SelectDevice(ctx context.Context, deviceID string) error
	Capture(ctx context.Context) (*domain.CapturedFrame, error)
	Status() application.Status
	Surface() domain.VideoSurface
}

// ClientGauge учитывает число подключенных страниц
type ClientGauge interface {
	SetClients(n int)
}

// Hub связывает открытые страницы с сессией камеры. Для сессии он
// служит источником видимости, уведомлений и сигналов съемки.
type Hub struct {
	logger  application.Logger
	encoder application.FrameEncoder
	gauge   ClientGauge

	mutex       sync.Mutex
	controller  Controller
	clients     map[string]*client
	handlers    map[int]func(domain.VisibilityState)
	nextHandler int
	closed      bool
	onMount     func()
	onUnmount   func()

	// pages держится, пока страница регистрируется или уходит вместе
	// с вызовом onMount/onUnmount
	pages sync.Mutex

	ctx      context.Context
	cancel   context.CancelFunc
	triggers chan struct{}
}

// NewHub создает новый хаб
func NewHub(encoder application.FrameEncoder, gauge ClientGauge, logger application.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		logger:   logger,
		encoder:  encoder,
		gauge:    gauge,
		clients:  make(map[string]*client),
		handlers: make(map[int]func(domain.VisibilityState)),
		ctx:      ctx,
		cancel:   cancel,
		triggers: make(chan struct{}, 1),
	}
}

// Bind подключает сессию камеры
func (h *Hub) Bind(controller Controller) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.controller = controller
}

// SetLifecycle задает обработчики открытия первой и закрытия последней страницы
func (h *Hub) SetLifecycle(onMount, onUnmount func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onMount = onMount
	h.onUnmount = onUnmount
}

// Alert показывает блокирующее уведомление на всех страницах
func (h *Hub) Alert(message string) {
	h.broadcastJSON(outbound{Type: msgAlert, Message: message})
}

// Subscribe подписывает обработчик событий видимости страниц
func (h *Hub) Subscribe(handler func(domain.VisibilityState)) func() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.nextHandler
	h.nextHandler++
	h.handlers[id] = handler

	return func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		delete(h.handlers, id)
	}
}

// Triggers возвращает сигналы съемки от клавиш громкости на страницах
func (h *Hub) Triggers() <-chan struct{} {
	return h.triggers
}

// Offer предлагает скачать сохраненный снимок. Если съемку запросила
// страница (ее id в ctx), ссылка уходит только ей, иначе всем страницам.
func (h *Hub) Offer(ctx context.Context, name string) {
	msg := outbound{Type: msgDownload, Name: name, URL: captureURL(name)}
	if id, ok := ctx.Value(clientKey{}).(string); ok {
		h.mutex.Lock()
		c := h.clients[id]
		h.mutex.Unlock()
		if c != nil {
			h.sendJSON(c, msg)
		}
		return
	}
	h.broadcastJSON(msg)
}

// BroadcastStatus рассылает состояние сессии всем страницам
func (h *Hub) BroadcastStatus() {
	ctrl := h.boundController()
	if ctrl == nil {
		return
	}
	st := ctrl.Status()
	h.broadcastJSON(devicesMessage(st))
	h.broadcastJSON(statusMessage(st))
}

// ClientCount возвращает число подключенных страниц
func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// ServeWS обрабатывает WebSocket подключение страницы
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Ошибка при апгрейде до WebSocket: %v", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan frame, sendBuffer),
	}
	h.pages.Lock()
	first, ok := h.register(c)
	if !ok {
		h.pages.Unlock()
		conn.Close()
		return
	}
	h.logger.Info("Страница подключена: %s (%s)", c.id, conn.RemoteAddr())

	go c.writePump(h.logger)

	if first {
		if onMount := h.lifecycle(true); onMount != nil {
			onMount()
		}
	}
	h.pages.Unlock()

	if ctrl := h.boundController(); ctrl != nil {
		st := ctrl.Status()
		h.sendJSON(c, devicesMessage(st))
		h.sendJSON(c, statusMessage(st))
	}

	h.readPump(c)
}

// RunPreview рассылает уменьшенные кадры превью с частотой fps
func (h *Hub) RunPreview(ctx context.Context, fps, maxWidth int) {
	if fps <= 0 {
		fps = 10
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sendPreview(maxWidth)
		}
	}
}

// Close отключает все страницы
func (h *Hub) Close() {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		clients = append(clients, c)
		close(c.send)
		delete(h.clients, id)
	}
	h.mutex.Unlock()

	h.cancel()
	for _, c := range clients {
		c.conn.Close()
	}
	h.updateGauge()
}

func (h *Hub) sendPreview(maxWidth int) {
	if h.ClientCount() == 0 {
		return
	}
	ctrl := h.boundController()
	if ctrl == nil {
		return
	}
	surface := ctrl.Surface()
	if surface == nil {
		return
	}
	if w, hh := surface.Dimensions(); w == 0 || hh == 0 {
		return
	}

	img, err := previewImage(surface, maxWidth)
	if err != nil {
		return
	}
	data, err := h.encoder.Encode(img, previewQuality)
	if err != nil {
		h.logger.Debug("Ошибка кодирования превью: %v", err)
		return
	}
	h.broadcast(frame{kind: websocket.BinaryMessage, data: data})
}

// thumbnailer поверхность, умеющая уменьшать кадр без полной копии
type thumbnailer interface {
	Thumbnail(maxWidth int) (image.Image, error)
}

func previewImage(surface domain.VideoSurface, maxWidth int) (image.Image, error) {
	if t, ok := surface.(thumbnailer); ok {
		return t.Thumbnail(maxWidth)
	}
	img, err := surface.Snapshot()
	if err != nil {
		return nil, err
	}
	return imaging.Thumbnail(img, maxWidth), nil
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(maxInboundSize)
	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Error("Ошибка чтения: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil {
			h.logger.Debug("Некорректное сообщение от %s: %v", c.id, err)
			continue
		}
		h.dispatch(c, in)
	}
}

func (h *Hub) dispatch(c *client, in inbound) {
	switch in.Type {
	case msgSelect:
		if ctrl := h.boundController(); ctrl != nil {
			// ошибка уже показана пользователю через Alert
			if err := ctrl.SelectDevice(h.ctx, in.DeviceID); err != nil {
				h.logger.Debug("Выбор камеры не удался: %v", err)
			}
		}
	case msgCapture:
		if ctrl := h.boundController(); ctrl != nil {
			ctx := context.WithValue(h.ctx, clientKey{}, c.id)
			if _, err := ctrl.Capture(ctx); err != nil {
				h.logger.Error("Ошибка съемки: %v", err)
			}
		}
	case msgKey:
		if application.IsCaptureKey(in.Code, in.Key) {
			select {
			case h.triggers <- struct{}{}:
			default:
			}
		}
	case msgVisibility:
		h.notifyVisibility(domain.VisibilityState(in.State))
	default:
		h.logger.Debug("Неизвестный тип сообщения: %q", in.Type)
	}
}

func (h *Hub) notifyVisibility(state domain.VisibilityState) {
	if state != domain.VisibilityVisible && state != domain.VisibilityHidden {
		return
	}

	h.mutex.Lock()
	handlers := make([]func(domain.VisibilityState), 0, len(h.handlers))
	for _, fn := range h.handlers {
		handlers = append(handlers, fn)
	}
	h.mutex.Unlock()

	for _, fn := range handlers {
		fn(state)
	}
}

func (h *Hub) boundController() Controller {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.controller
}

// register возвращает first=true для первой открытой страницы
func (h *Hub) register(c *client) (first, ok bool) {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return false, false
	}
	h.clients[c.id] = c
	first = len(h.clients) == 1
	h.mutex.Unlock()

	h.updateGauge()
	return first, true
}

func (h *Hub) unregister(c *client) {
	h.pages.Lock()
	defer h.pages.Unlock()

	h.mutex.Lock()
	_, removed := h.clients[c.id]
	if removed {
		delete(h.clients, c.id)
		close(c.send)
	}
	last := removed && len(h.clients) == 0
	h.mutex.Unlock()

	h.logger.Info("Страница отключена: %s", c.id)
	h.updateGauge()

	if last {
		if onUnmount := h.lifecycle(false); onUnmount != nil {
			onUnmount()
		}
	}
}

func (h *Hub) lifecycle(mount bool) func() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if mount {
		return h.onMount
	}
	return h.onUnmount
}

func (h *Hub) updateGauge() {
	if h.gauge != nil {
		h.gauge.SetClients(h.ClientCount())
	}
}

func (h *Hub) broadcastJSON(msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Ошибка сериализации сообщения: %v", err)
		return
	}
	h.broadcast(frame{kind: websocket.TextMessage, data: data})
}

func (h *Hub) sendJSON(c *client, msg outbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Ошибка сериализации сообщения: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[c.id]; ok {
		c.enqueue(frame{kind: websocket.TextMessage, data: data})
	}
}

func (h *Hub) broadcast(f frame) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, c := range h.clients {
		if !c.enqueue(f) {
			h.logger.Debug("Буфер страницы %s заполнен, сообщение пропущено", c.id)
		}
	}
}

// clientKey ключ контекста с id страницы, запросившей съемку
type clientKey struct{}

// frame одно сообщение WebSocket
type frame struct {
	kind int
	data []byte
}

// client одна открытая страница
type client struct {
	id   string
	conn *websocket.Conn
	send chan frame
}

// enqueue не блокирует; вызывается под блокировкой хаба
func (c *client) enqueue(f frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *client) writePump(logger application.Logger) {
	defer c.conn.Close()

	for f := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
			logger.Debug("Ошибка отправки данных: %v", err)
			return
		}
	}

	// Отправляем сообщение о закрытии
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}
