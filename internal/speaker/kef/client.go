package kef

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"kefctl/internal/speaker"
)

// DefaultPort задает TCP-порт управления KEF LS50 Wireless / LSX.
const DefaultPort = 50001

// Config определяет параметры подключения к колонке.
type Config struct {
	Host       string
	Port       int
	Timeout    time.Duration
	VolumeStep float64
	MaxVolume  float64
}

// Client реализует speaker.Device поверх TCP.
// Клиент не безопасен для конкурентного использования: вызовы сериализует core.Loop.
type Client struct {
	cfg    Config
	dialer net.Dialer
	conn   net.Conn
}

// NewClient создает клиента; соединение устанавливается лениво.
func NewClient(cfg Config) *Client {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.VolumeStep <= 0 {
		cfg.VolumeStep = 0.05
	}
	if cfg.MaxVolume <= 0 || cfg.MaxVolume > 1 {
		cfg.MaxVolume = 1
	}
	return &Client{cfg: cfg, dialer: net.Dialer{Timeout: cfg.Timeout}}
}

// Addr возвращает адрес колонки host:port.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// Close закрывает текущее TCP-соединение, если оно есть.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// connect открывает соединение, если его нет. reused сообщает, что
// использовано ранее открытое соединение.
func (c *Client) connect(ctx context.Context) (reused bool, err error) {
	if c.conn != nil {
		return true, nil
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.Addr())
	if err != nil {
		return false, fmt.Errorf("connect %s: %w", c.Addr(), err)
	}
	c.conn = conn
	return false, nil
}

// exchange отправляет кадр и читает ответ фиксированной длины.
// Колонка закрывает простаивающие соединения, поэтому сбой на ранее
// открытом соединении повторяется один раз на новом.
func (c *Client) exchange(ctx context.Context, frame []byte, replyLen int) ([]byte, error) {
	reused, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(ctx, frame, replyLen)
	if err == nil || !reused || ctx.Err() != nil {
		return reply, err
	}
	if _, err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c.roundTrip(ctx, frame, replyLen)
}

// roundTrip выполняет один обмен. После ошибки соединение сбрасывается.
func (c *Client) roundTrip(ctx context.Context, frame []byte, replyLen int) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("write: %w", err)
	}
	reply := make([]byte, replyLen)
	if _, err := io.ReadFull(c.conn, reply); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("read: %w", err)
	}
	return reply, nil
}

func (c *Client) get(ctx context.Context, reg byte) (byte, error) {
	reply, err := c.exchange(ctx, getFrame(reg), getReplyLength)
	if err != nil {
		return 0, err
	}
	v, err := parseGetReply(reg, reply)
	if err != nil {
		_ = c.Close()
	}
	return v, err
}

func (c *Client) set(ctx context.Context, reg, value byte) error {
	reply, err := c.exchange(ctx, setFrame(reg, value), setReplyLength)
	if err != nil {
		return err
	}
	if err := parseSetReply(reply); err != nil {
		_ = c.Close()
		return err
	}
	return nil
}

// IsOnline сообщает, отвечает ли колонка на запрос громкости за таймаут.
// Открытого сокета недостаточно: колонка могла пропасть после последнего обмена.
func (c *Client) IsOnline(ctx context.Context) (bool, error) {
	if _, err := c.get(ctx, regVolume); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		return false, nil
	}
	return true, nil
}

func (c *Client) State(ctx context.Context) (speaker.State, error) {
	b, err := c.get(ctx, regSource)
	if err != nil {
		return speaker.State{}, err
	}
	return stateFromByte(b)
}

func (c *Client) Volume(ctx context.Context) (float64, error) {
	b, err := c.get(ctx, regVolume)
	if err != nil {
		return 0, err
	}
	v, _ := volumeFromByte(b)
	return v, nil
}

func (c *Client) SetVolume(ctx context.Context, volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume %v out of range [0, 1]", volume)
	}
	b, err := c.get(ctx, regVolume)
	if err != nil {
		return err
	}
	_, muted := volumeFromByte(b)
	return c.set(ctx, regVolume, volumeToByte(speaker.ClampVolume(volume, c.cfg.MaxVolume), muted))
}

func (c *Client) Source(ctx context.Context) (speaker.Source, error) {
	b, err := c.get(ctx, regSource)
	if err != nil {
		return "", err
	}
	return sourceFromByte(b)
}

func (c *Client) SetSource(ctx context.Context, source speaker.Source) error {
	b, err := c.get(ctx, regSource)
	if err != nil {
		return err
	}
	next, err := withSource(b, source)
	if err != nil {
		return err
	}
	return c.set(ctx, regSource, next)
}

func (c *Client) Mode(ctx context.Context) (speaker.Mode, error) {
	var (
		m    speaker.Mode
		bits = map[byte]*bool{
			regDeskMode:        &m.DeskMode,
			regWallMode:        &m.WallMode,
			regPhaseCorrection: &m.PhaseCorrection,
			regHighPass:        &m.HighPass,
			regLowPass:         &m.LowPass,
		}
	)
	for _, reg := range []byte{regDeskMode, regWallMode, regPhaseCorrection, regHighPass, regLowPass} {
		b, err := c.get(ctx, reg)
		if err != nil {
			return speaker.Mode{}, err
		}
		*bits[reg] = b&0x01 != 0
	}
	pol, err := c.get(ctx, regSubPolarity)
	if err != nil {
		return speaker.Mode{}, err
	}
	m.SubPolarity = "+"
	if pol&0x01 != 0 {
		m.SubPolarity = "-"
	}
	bass, err := c.get(ctx, regBassExtension)
	if err != nil {
		return speaker.Mode{}, err
	}
	ext, ok := bassExtensions[bass&0x03]
	if !ok {
		return speaker.Mode{}, fmt.Errorf("bass extension 0x%02x: %w", bass, errBadReply)
	}
	m.BassExtension = ext
	return m, nil
}

func (c *Client) setMuted(ctx context.Context, muted bool) error {
	b, err := c.get(ctx, regVolume)
	if err != nil {
		return err
	}
	v, _ := volumeFromByte(b)
	return c.set(ctx, regVolume, volumeToByte(v, muted))
}

func (c *Client) Mute(ctx context.Context) error   { return c.setMuted(ctx, true) }
func (c *Client) Unmute(ctx context.Context) error { return c.setMuted(ctx, false) }

func (c *Client) setPower(ctx context.Context, on bool) error {
	b, err := c.get(ctx, regSource)
	if err != nil {
		return err
	}
	return c.set(ctx, regSource, withPower(b, on))
}

func (c *Client) TurnOn(ctx context.Context) error  { return c.setPower(ctx, true) }
func (c *Client) TurnOff(ctx context.Context) error { return c.setPower(ctx, false) }

func (c *Client) stepVolume(ctx context.Context, delta float64) (float64, error) {
	b, err := c.get(ctx, regVolume)
	if err != nil {
		return 0, err
	}
	v, muted := volumeFromByte(b)
	next := speaker.ClampVolume(v+delta, c.cfg.MaxVolume)
	if err := c.set(ctx, regVolume, volumeToByte(next, muted)); err != nil {
		return 0, err
	}
	return next, nil
}

func (c *Client) IncreaseVolume(ctx context.Context) (float64, error) {
	return c.stepVolume(ctx, c.cfg.VolumeStep)
}

func (c *Client) DecreaseVolume(ctx context.Context) (float64, error) {
	return c.stepVolume(ctx, -c.cfg.VolumeStep)
}

// IsMalformedReply сообщает, что колонка вернула неожиданный ответ.
func IsMalformedReply(err error) bool {
	return errors.Is(err, errBadReply)
}
