package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/alcorzop/portal-gateway/internal"
	"github.com/alcorzop/portal-gateway/internal/config"
	"github.com/alcorzop/portal-gateway/internal/logging"
	"github.com/alcorzop/portal-gateway/pkg"

	log "github.com/sirupsen/logrus"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of the given password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := pkg.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("hash password: %s", err)
		}
		fmt.Println(hash)
		return
	}

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    false,
		Environment:      *env,
		SentryEnabled:    cfg.SentryEnabled && sentryDSN != "",
		SentryDSN:        sentryDSN,
		SentryServerName: "portal-gateway",
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	// when unset, the admin principal comes from the admin_user table
	adminEmail := os.Getenv("PORTAL_ADMIN_EMAIL")
	adminPasswordHash := os.Getenv("PORTAL_ADMIN_PASSWORD_HASH")
	if adminEmail == "" || adminPasswordHash == "" {
		log.Debugln("admin principal env bootstrap not set, using the database " +
			"(set PORTAL_ADMIN_EMAIL and PORTAL_ADMIN_PASSWORD_HASH to override)")
	}

	adminPathSeed := os.Getenv("PORTAL_ADMIN_PATH_SEED")

	redisPassword := os.Getenv("PORTAL_REDIS_PASS")
	if cfg.RedisEnabled && redisPassword == "" {
		log.Errorf("redis password not set. use PORTAL_REDIS_PASS")
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(
		ctx,
		internal.NewServerParams{
			Config:            cfg,
			VersionInfo:       versionInfo,
			AdminEmail:        adminEmail,
			AdminPasswordHash: adminPasswordHash,
			AdminPathSeed:     adminPathSeed,
			RedisPassword:     redisPassword,
		},
	)
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(ctx, cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, shutting down ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(stdout), nil
}
