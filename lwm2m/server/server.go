// Package server exposes a Registry of LwM2M objects over CoAP. It is the
// host side of the object contract: it parses request paths, picks the
// operation, serializes calls into the objects and encodes the results.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/plgd-dev/go-coap/v3"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"temperature-simulator-coap/lwm2m"
)

const (
	opRead     = "read"
	opDiscover = "discover"
	opWrite    = "write"
	opExecute  = "execute"
	opUnknown  = "unknown"
)

var errBadPath = errors.New("bad LwM2M path")

// Request is the part of a CoAP request the server acts on.
type Request struct {
	Code             codes.Code
	Path             string
	Accept           message.MediaType
	HasAccept        bool
	ContentFormat    message.MediaType
	HasContentFormat bool
	Payload          []byte
}

type Response struct {
	Code          codes.Code
	ContentFormat message.MediaType
	Payload       []byte
}

type Server struct {
	registry *lwm2m.Registry
	logger   *zap.Logger
	requests *prometheus.CounterVec
	now      func() time.Time

	// objects are invoked one call at a time
	mu sync.Mutex
}

// New registers the request counter with reg, which may be nil to skip
// metrics registration.
func New(registry *lwm2m.Registry, logger *zap.Logger, reg prometheus.Registerer) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lwm2m_requests_total",
		Help: "LwM2M requests handled, by operation and response code.",
	}, []string{"operation", "code"})
	if reg != nil {
		if err := reg.Register(requests); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return &Server{
		registry: registry,
		logger:   logger,
		requests: requests,
		now:      time.Now,
	}, nil
}

// Router returns a go-coap handler serving every path through Handle.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.DefaultHandle(mux.HandlerFunc(s.serveCOAP))
	return r
}

func (s *Server) ListenAndServe(network, addr string) error {
	s.logger.Info("serving LwM2M objects", zap.String("network", network), zap.String("addr", addr))
	return coap.ListenAndServe(network, addr, s.Router())
}

func (s *Server) serveCOAP(w mux.ResponseWriter, r *mux.Message) {
	req := Request{Code: r.Code()}
	if path, err := r.Path(); err == nil {
		req.Path = path
	}
	if accept, err := r.Options().GetUint32(message.Accept); err == nil {
		req.Accept = message.MediaType(accept)
		req.HasAccept = true
	}
	if cf, err := r.ContentFormat(); err == nil {
		req.ContentFormat = cf
		req.HasContentFormat = true
	}
	if body := r.Body(); body != nil {
		payload, err := io.ReadAll(body)
		if err != nil {
			s.logger.Warn("read request body", zap.Error(err))
			s.respond(w, Response{Code: codes.BadRequest})
			return
		}
		req.Payload = payload
	}
	s.respond(w, s.Handle(req))
}

func (s *Server) respond(w mux.ResponseWriter, resp Response) {
	var body io.ReadSeeker
	if resp.Payload != nil {
		body = bytes.NewReader(resp.Payload)
	}
	if err := w.SetResponse(resp.Code, resp.ContentFormat, body); err != nil {
		s.logger.Warn("set response", zap.Error(err))
	}
}

// target is a parsed /object[/instance[/resource]] path.
type target struct {
	object      lwm2m.LwM2MObjectID
	instance    uint16
	resource    uint16
	hasInstance bool
	hasResource bool
}

func (t target) String() string {
	s := "/" + strconv.FormatUint(uint64(t.object), 10)
	if t.hasInstance {
		s += "/" + strconv.FormatUint(uint64(t.instance), 10)
	}
	if t.hasResource {
		s += "/" + strconv.FormatUint(uint64(t.resource), 10)
	}
	return s
}

func parsePath(path string) (target, error) {
	var t target
	path = strings.Trim(path, "/")
	if path == "" {
		return t, errBadPath
	}
	parts := strings.Split(path, "/")
	if len(parts) > 3 {
		return t, fmt.Errorf("%w: %q", errBadPath, path)
	}
	var ids [3]uint16
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return t, fmt.Errorf("%w: %q: %v", errBadPath, path, err)
		}
		ids[i] = uint16(v)
	}
	t.object = lwm2m.LwM2MObjectID(ids[0])
	t.instance, t.hasInstance = ids[1], len(parts) > 1
	t.resource, t.hasResource = ids[2], len(parts) > 2
	return t, nil
}

// Handle dispatches one request to the registry.
func (s *Server) Handle(req Request) Response {
	op, resp := s.handle(req)
	s.requests.WithLabelValues(op, resp.Code.String()).Inc()
	s.logger.Debug("handled request",
		zap.Stringer("method", req.Code),
		zap.String("path", req.Path),
		zap.String("operation", op),
		zap.Stringer("code", resp.Code))
	return resp
}

func (s *Server) handle(req Request) (string, Response) {
	t, err := parsePath(req.Path)
	if err != nil {
		return opUnknown, Response{Code: codes.BadRequest}
	}
	obj, ok := s.registry.Get(t.object)
	if !ok {
		return opUnknown, Response{Code: codes.NotFound}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Code {
	case codes.GET:
		if req.HasAccept && req.Accept == message.AppLinkFormat {
			return opDiscover, s.discover(obj, t)
		}
		return opRead, s.read(obj, t, req)
	case codes.PUT:
		return opWrite, s.write(obj, t, req, lwm2m.WriteReplace)
	case codes.POST:
		if t.hasResource {
			return opExecute, Response{Code: obj.Execute(t.instance, t.resource, req.Payload)}
		}
		return opWrite, s.write(obj, t, req, lwm2m.WriteUpdate)
	}
	return opUnknown, Response{Code: codes.MethodNotAllowed}
}

func (s *Server) instances(obj lwm2m.Object, t target) []uint16 {
	if t.hasInstance {
		return []uint16{t.instance}
	}
	return obj.InstanceIDs()
}

func requestFor(t target) []lwm2m.Data {
	if !t.hasResource {
		return nil
	}
	return []lwm2m.Data{{ID: t.resource}}
}

func (s *Server) discover(obj lwm2m.Object, t target) Response {
	var links []string
	for _, inst := range s.instances(obj, t) {
		data, status := obj.Discover(inst, requestFor(t))
		if status != lwm2m.Content {
			return Response{Code: status}
		}
		for _, d := range data {
			links = append(links, fmt.Sprintf("</%d/%d/%d>", t.object, inst, d.ID))
		}
	}
	return Response{
		Code:          codes.Content,
		ContentFormat: message.AppLinkFormat,
		Payload:       []byte(strings.Join(links, ",")),
	}
}

func (s *Server) read(obj lwm2m.Object, t target, req Request) Response {
	if t.hasResource {
		data, status := obj.Read(t.instance, requestFor(t))
		if status != lwm2m.Content {
			return Response{Code: status}
		}
		return Response{
			Code:          codes.Content,
			ContentFormat: message.TextPlain,
			Payload:       []byte(data[0].Text()),
		}
	}

	// object-level reads answer with the lowest instance
	ids := s.instances(obj, t)
	if len(ids) == 0 {
		return Response{Code: codes.NotFound}
	}
	data, status := obj.Read(ids[0], nil)
	if status != lwm2m.Content {
		return Response{Code: status}
	}
	inst := lwm2m.LwM2MObjectInstance{ObjectID: t.object, InstanceID: ids[0], Resources: data}
	baseTime := float64(s.now().Unix())

	var (
		payload []byte
		err     error
		format  = message.AppSenmlCbor
	)
	if req.HasAccept && req.Accept == message.AppSenmlJSON {
		format = message.AppSenmlJSON
		payload, err = lwm2m.EncodeSenMLJSON(inst, baseTime)
	} else {
		payload, err = lwm2m.EncodeSenMLCBOR(inst, baseTime)
	}
	if err != nil {
		s.logger.Error("encode read result", zap.Stringer("path", t), zap.Error(err))
		return Response{Code: codes.InternalServerError}
	}
	return Response{Code: codes.Content, ContentFormat: format, Payload: payload}
}

func (s *Server) write(obj lwm2m.Object, t target, req Request, writeType lwm2m.WriteType) Response {
	if !t.hasInstance {
		return Response{Code: codes.MethodNotAllowed}
	}

	if t.hasResource {
		d := lwm2m.Data{ID: t.resource}
		if req.HasContentFormat && req.ContentFormat == message.AppOctets {
			d.Type = lwm2m.TypeOpaque
			d.Buffer = req.Payload
		} else {
			lwm2m.EncodeString(string(req.Payload), &d)
		}
		return Response{Code: obj.Write(t.instance, []lwm2m.Data{d}, writeType)}
	}

	var (
		inst lwm2m.LwM2MObjectInstance
		err  error
	)
	switch {
	case req.HasContentFormat && req.ContentFormat == message.AppSenmlJSON:
		inst, err = lwm2m.DecodeSenMLJSON(req.Payload)
	case !req.HasContentFormat || req.ContentFormat == message.AppSenmlCbor:
		inst, err = lwm2m.DecodeSenMLCBOR(req.Payload)
	default:
		return Response{Code: codes.UnsupportedMediaType}
	}
	if err != nil {
		s.logger.Debug("decode write payload", zap.Stringer("path", t), zap.Error(err))
		return Response{Code: codes.BadRequest}
	}
	if inst.ObjectID != t.object || inst.InstanceID != t.instance {
		return Response{Code: codes.BadRequest}
	}
	return Response{Code: obj.Write(t.instance, inst.Resources, writeType)}
}
