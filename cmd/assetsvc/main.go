// Command assetsvc is the asset store's service entrypoint: it loads
// configuration, wires the keystore/store/session/record collaborators, and serves
// the dispatch transport until signaled to stop.
package main

import (
	"crypto/rand"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/config"
	"github.com/armorclaw/assetstore/internal/dispatch"
	"github.com/armorclaw/assetstore/internal/keystore"
	"github.com/armorclaw/assetstore/internal/keystore/filedbkeystore"
	"github.com/armorclaw/assetstore/internal/keystore/refhsm"
	"github.com/armorclaw/assetstore/internal/logging"
	"github.com/armorclaw/assetstore/internal/pluginbus"
	"github.com/armorclaw/assetstore/internal/record"
	"github.com/armorclaw/assetstore/internal/session"
	"github.com/armorclaw/assetstore/internal/storemanager"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	cfg := config.LoadOrDie(*configPath)

	logging.Init(logging.Config{Level: logLevel(cfg.Logging.Level)})
	log := logging.For("assetsvc")
	log.Info("starting asset store service", "version", version, "build_time", buildTime)

	dbKeys := filedbkeystore.New(cfg.Storage.CERoot)
	hsm := refhsm.New(loadOrGenerateRootSecret(cfg))
	keys := keystore.New(hsm, dbKeys)

	stores := storemanager.New(cfg.Storage.DERoot, cfg.Storage.CERoot, keys, func(userID int32) (assettype.OwnerType, []byte) {
		return assettype.OwnerNative, []byte(os.Getenv("HOSTNAME"))
	})

	svc := &record.Service{
		Stores: stores,
		Keys:   keys,
		Cache:  session.New(),
		Bus:    pluginbus.NopBus{},
		Clock:  record.SystemClock{},
		Verify: authVerifier(cfg),
	}

	router := &dispatch.Router{
		Resolver: callerinfo.LocalResolver{},
		Service:  svc,
	}

	server := dispatch.NewServer(cfg.Server.SocketPath, router, unloadSignal{})

	maintenance := dispatch.NewMaintenance(stores, cfg.Storage.RecordTimePath, func() bool { return true }, unloadSignal{})
	maintenance.Start()

	go func() {
		log.Info("listening", "socket", cfg.Server.SocketPath)
		if err := server.Serve(); err != nil && err != dispatch.ErrServerClosed {
			log.Error("serve failed", "error", err)
		}
	}()

	waitForShutdown(log, server, maintenance, stores)
}

func waitForShutdown(log *slog.Logger, server *dispatch.Server, maintenance *dispatch.Maintenance, stores *storemanager.Manager) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	maintenance.Stop()
	if err := server.Close(); err != nil {
		log.Warn("server close error", "error", err)
	}
	if err := stores.CloseAll(); err != nil {
		log.Warn("store close error", "error", err)
	}
}

// unloadSignal is the production UnloadSignal: a long-lived process just logs the
// idle-unload request rather than actually exiting, since an always-on daemon has
// no host service-manager counting its reference handles (§4.8's unload semantics
// assume a plugin-hosted process model this standalone binary doesn't have).
type unloadSignal struct{}

func (unloadSignal) RequestUnload() {
	logging.For("dispatch").Debug("idle-unload window elapsed, no in-flight requests")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadOrGenerateRootSecret reads the HSM root secret from the CE root's
// `hsm_root_secret` file, generating one on first boot. A real device derives this
// from a hardware-backed key; refhsm's PBKDF2 derivation stands in for that seam.
func loadOrGenerateRootSecret(cfg *config.Config) []byte {
	path := filepath.Join(cfg.Storage.CERoot, "hsm_root_secret")
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		return b
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatalf("failed to generate root secret: %v", err)
	}
	if err := os.MkdirAll(cfg.Storage.CERoot, 0o700); err != nil {
		log.Fatalf("failed to create CE root: %v", err)
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		log.Fatalf("failed to persist root secret: %v", err)
	}
	return secret
}

// authVerifier builds an HS256 TokenVerifier whose shared secret is the content of
// the file at cfg.Auth.JWTPublicKeyPath, or nil when unset or unreadable so AuthType=Any queries without a prior AuthToken fail closed rather
// than silently accepting unsigned tokens.
func authVerifier(cfg *config.Config) *session.TokenVerifier {
	if cfg.Auth.JWTPublicKeyPath == "" {
		return nil
	}
	key, err := os.ReadFile(cfg.Auth.JWTPublicKeyPath)
	if err != nil {
		log.Printf("warning: failed to read jwt public key %s: %v", cfg.Auth.JWTPublicKeyPath, err)
		return nil
	}
	return session.NewHMACVerifier(key)
}
