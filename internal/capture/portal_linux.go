//go:build linux

package capture

import (
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/godbus/dbus/v5"

	"waycast/internal/config"
	"waycast/internal/model"
	"waycast/internal/werrors"
)

const (
	portalBus  = "org.freedesktop.portal.Desktop"
	portalPath = "/org/freedesktop/portal/desktop"

	portalScreenCastIface = "org.freedesktop.portal.ScreenCast"
	portalRequestIface    = "org.freedesktop.portal.Request"
)

const (
	portalSourceMonitor = uint32(1)
	portalSourceWindow  = uint32(2)
)

const (
	portalCursorHidden   = uint32(1)
	portalCursorEmbedded = uint32(2)
)

const portalResponseTimeout = 30 * time.Second

// portalCapture drives the xdg-desktop-portal ScreenCast RPC flow to obtain
// a PipeWire node ID and remote FD, then delegates actual frame delivery
// to a pipeWireCapture bound to that node.
type portalCapture struct {
	cfg  config.CaptureConfig
	conn *dbus.Conn

	sessionHandle string
	nodeID        uint32
	pipeWireFD    int

	mu    sync.Mutex
	inner *pipeWireCapture
}

func newPortalCapture(cfg config.CaptureConfig) (Capture, error) {
	return &portalCapture{cfg: cfg, pipeWireFD: -1}, nil
}

func (p *portalCapture) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner != nil && p.inner.IsActive() {
		return nil
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return werrors.Wrap(werrors.KindPortal, err, "connect session bus")
	}
	p.conn = conn

	if err := p.createSession(); err != nil {
		conn.Close()
		return err
	}
	if err := p.selectSources(); err != nil {
		conn.Close()
		return err
	}
	if err := p.startSession(); err != nil {
		conn.Close()
		return err
	}
	if err := p.openPipeWireRemote(); err != nil {
		conn.Close()
		return err
	}

	inner, err := newPipeWireCapture(p.cfg, &pipeWireTarget{nodeID: p.nodeID, remoteFD: p.pipeWireFD})
	if err != nil {
		conn.Close()
		return err
	}
	p.inner = inner
	return p.inner.Start()
}

func (p *portalCapture) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner != nil {
		_ = p.inner.Stop()
	}
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	return nil
}

func (p *portalCapture) NextFrame() (model.Frame, error) {
	p.mu.Lock()
	inner := p.inner
	p.mu.Unlock()
	if inner == nil {
		return model.Frame{}, werrors.ErrCaptureNotStarted
	}
	return inner.NextFrame()
}

func (p *portalCapture) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inner != nil && p.inner.IsActive()
}

func (p *portalCapture) Resolution() model.Resolution {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner == nil {
		return model.Resolution{}
	}
	return p.inner.Resolution()
}

func (p *portalCapture) Framerate() model.Framerate {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inner == nil {
		return model.Framerate{}
	}
	return p.inner.Framerate()
}

// requestPath builds the /org/freedesktop/portal/desktop/request/<sender>/<token>
// object path the portal uses to emit a Response signal for one request.
func (p *portalCapture) requestPath(token string) dbus.ObjectPath {
	sender := p.conn.Names()[0]
	var b strings.Builder
	for _, c := range sender[1:] {
		if c == '.' {
			b.WriteByte('_')
		} else {
			b.WriteRune(c)
		}
	}
	return dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/portal/desktop/request/%s/%s", b.String(), token))
}

func (p *portalCapture) subscribeResponse(reqPath dbus.ObjectPath) (chan *dbus.Signal, error) {
	if err := p.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(reqPath),
		dbus.WithMatchInterface(portalRequestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		return nil, werrors.Wrap(werrors.KindPortal, err, "add signal match")
	}
	ch := make(chan *dbus.Signal, 10)
	p.conn.Signal(ch)
	return ch, nil
}

func (p *portalCapture) createSession() error {
	token := fmt.Sprintf("waycast_%d", time.Now().UnixNano())
	reqToken := fmt.Sprintf("req_%d", time.Now().UnixNano())
	reqPath := p.requestPath(reqToken)

	sig, err := p.subscribeResponse(reqPath)
	if err != nil {
		return err
	}
	defer p.conn.RemoveSignal(sig)

	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(reqToken),
		"session_handle_token": dbus.MakeVariant(token),
	}
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".CreateSession", 0, options).Store(&returnedPath); err != nil {
		return werrors.Wrap(werrors.KindPortal, err, "CreateSession call")
	}

	results, err := waitForResponse(sig)
	if err != nil {
		return err
	}
	handle, _ := results["session_handle"].Value().(string)
	if handle == "" {
		return werrors.New(werrors.KindNoCaptureSource)
	}
	p.sessionHandle = handle
	return nil
}

func (p *portalCapture) selectSources() error {
	reqToken := fmt.Sprintf("req_%d", time.Now().UnixNano())
	reqPath := p.requestPath(reqToken)

	sig, err := p.subscribeResponse(reqPath)
	if err != nil {
		return err
	}
	defer p.conn.RemoveSignal(sig)

	cursorMode := portalCursorEmbedded
	if !p.cfg.ShowCursor {
		cursorMode = portalCursorHidden
	}

	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(reqToken),
		"types":        dbus.MakeVariant(portalSourceMonitor | portalSourceWindow),
		"cursor_mode":  dbus.MakeVariant(cursorMode),
		"persist_mode": dbus.MakeVariant(uint32(0)),
	}
	sessionPath := dbus.ObjectPath(p.sessionHandle)
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".SelectSources", 0, sessionPath, options).Store(&returnedPath); err != nil {
		return werrors.Wrap(werrors.KindPortal, err, "SelectSources call")
	}
	_, err = waitForResponse(sig)
	return err
}

func (p *portalCapture) startSession() error {
	reqToken := fmt.Sprintf("req_%d", time.Now().UnixNano())
	reqPath := p.requestPath(reqToken)

	sig, err := p.subscribeResponse(reqPath)
	if err != nil {
		return err
	}
	defer p.conn.RemoveSignal(sig)

	obj := p.conn.Object(portalBus, portalPath)
	options := map[string]dbus.Variant{"handle_token": dbus.MakeVariant(reqToken)}
	sessionPath := dbus.ObjectPath(p.sessionHandle)
	var returnedPath dbus.ObjectPath
	if err := obj.Call(portalScreenCastIface+".Start", 0, sessionPath, "", options).Store(&returnedPath); err != nil {
		return werrors.Wrap(werrors.KindPortal, err, "Start call")
	}

	results, err := waitForResponse(sig)
	if err != nil {
		return err
	}
	streams, ok := results["streams"].Value().([][]interface{})
	if !ok || len(streams) == 0 {
		return werrors.New(werrors.KindNoCaptureSource)
	}
	nodeID, ok := streams[0][0].(uint32)
	if !ok || nodeID == 0 {
		return werrors.New(werrors.KindNoCaptureSource)
	}
	p.nodeID = nodeID
	return nil
}

func (p *portalCapture) openPipeWireRemote() error {
	obj := p.conn.Object(portalBus, portalPath)
	var fd dbus.UnixFD
	err := obj.Call(
		portalScreenCastIface+".OpenPipeWireRemote", 0,
		dbus.ObjectPath(p.sessionHandle), map[string]dbus.Variant{},
	).Store(&fd)
	if err != nil {
		return werrors.Wrap(werrors.KindPortal, err, "OpenPipeWireRemote call")
	}
	// The dbus library may close its copy of the FD once the message is
	// garbage collected; duplicate it so the PipeWire connection owns a
	// stable descriptor.
	dup, derr := syscall.Dup(int(fd))
	if derr != nil {
		p.pipeWireFD = int(fd)
		return nil
	}
	p.pipeWireFD = dup
	return nil
}

func waitForResponse(sig chan *dbus.Signal) (map[string]dbus.Variant, error) {
	timeout := time.After(portalResponseTimeout)
	for {
		select {
		case s := <-sig:
			if s.Name != portalRequestIface+".Response" || len(s.Body) < 2 {
				continue
			}
			code, _ := s.Body[0].(uint32)
			if code != 0 {
				return nil, werrors.Newf(werrors.KindPortal, "portal request denied or cancelled (code %d)", code)
			}
			results, _ := s.Body[1].(map[string]dbus.Variant)
			return results, nil
		case <-timeout:
			return nil, werrors.ErrTimeout
		}
	}
}

