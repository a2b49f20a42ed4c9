package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	piondtls "github.com/pion/dtls/v2"
	"github.com/plgd-dev/go-coap/v3/dtls"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"temperature-simulator-coap/lwm2m"
	"temperature-simulator-coap/lwm2m/server"
	"temperature-simulator-coap/lwm2m/temperature"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(os.Args[1:], logger); err != nil {
		logger.Fatal("Simulator failed", zap.Error(err))
	}
}

// run returns once the objects are closed, so a failure can exit the
// process without skipping their teardown.
func run(args []string, logger *zap.Logger) (err error) {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create objects: %w", err)
	}
	defer func() {
		if closeErr := registry.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close objects: %w", closeErr))
		}
	}()

	if cfg.Listen != "" {
		return serve(cfg, registry, logger)
	}
	return publish(cfg, registry, logger)
}

func newRegistry(cfg *Config, logger *zap.Logger) (*lwm2m.Registry, error) {
	registry := lwm2m.NewRegistry()
	temp, err := temperature.New(cfg.Temperature.Object(time.Now()), logger)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(temp); err != nil {
		temp.Close()
		return nil, err
	}
	logger.Info("Object created", zap.Stringer("object", temp))
	return registry, nil
}

func serve(cfg *Config, registry *lwm2m.Registry, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	srv, err := server.New(registry, logger, reg)
	if err != nil {
		return err
	}

	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Info("Serving metrics", zap.String("addr", cfg.MetricsListen))
			if err := http.ListenAndServe(cfg.MetricsListen, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	return srv.ListenAndServe("udp", cfg.Listen)
}

// publish authenticates against nRF Cloud and sends a full read of every
// registered object as CBOR encoded SenML.
func publish(cfg *Config, registry *lwm2m.Registry, logger *zap.Logger) error {
	logger.Info("DeviceID", zap.String("deviceId", cfg.DeviceID))

	key, err := loadPrivateKey(cfg.KeyDir, cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to load private key: %w", err)
	}
	token, err := createJWTToken(key, cfg.DeviceID, time.Now(), cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("failed to create JWT token: %w", err)
	}
	logger.Debug("JWT Token", zap.String("token", token))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	co, err := dtls.Dial(cfg.Endpoint, &piondtls.Config{
		InsecureSkipVerify:    true,
		ConnectionIDGenerator: piondtls.OnlySendCIDGenerator(),
	})
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Endpoint, err)
	}
	defer func() {
		if err := co.Close(); err != nil {
			logger.Warn("Failed to close connection", zap.Error(err))
		}
	}()

	logger.Info("Connected", zap.String("endpoint", cfg.Endpoint))

	resp, err := co.Post(ctx, "/auth/jwt", message.TextPlain, strings.NewReader(token))
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := checkResponse(resp, codes.Created); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}

	stateResp, err := co.Get(ctx, "/state")
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	if err := checkResponse(stateResp, codes.Content); err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	if body := stateResp.Body(); body != nil {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		logger.Info("State", zap.ByteString("state", data))
	}

	ts := float64(time.Now().UnixMilli())
	for _, id := range registry.IDs() {
		obj, _ := registry.Get(id)
		for _, inst := range obj.InstanceIDs() {
			data, status := obj.Read(inst, nil)
			if status != lwm2m.Content {
				return fmt.Errorf("read /%d/%d: %v", id, inst, status)
			}
			payload, err := lwm2m.EncodeResolvedSenMLCBOR(lwm2m.LwM2MObjectInstance{
				ObjectID:   id,
				InstanceID: inst,
				Resources:  data,
			}, ts)
			if err != nil {
				return fmt.Errorf("encode /%d/%d: %w", id, inst, err)
			}

			logger.Info("> /msg/d2c/raw",
				zap.Stringer("object", id),
				zap.String("payload", hex.EncodeToString(payload)))

			rawResp, err := co.Post(ctx, "/msg/d2c/raw", message.AppCBOR, bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("publish /%d/%d: %w", id, inst, err)
			}
			if err := checkResponse(rawResp, codes.Created); err != nil {
				return fmt.Errorf("publish /%d/%d: %w", id, inst, err)
			}
			logger.Info("Published", zap.Stringer("object", id), zap.Uint16("instance", inst))
		}
	}
	return nil
}

func checkResponse(resp *pool.Message, expected codes.Code) error {
	if resp.Code() != expected {
		return fmt.Errorf("request failed: %v, expected %v", resp.Code(), expected)
	}
	return nil
}
