// Package config declares the command line flags of the server and reads
// them into a Config.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

// Config is the runtime configuration of the server.
type Config struct {
	Port               string
	AWSRegion          string
	S3Bucket           string
	AuthURL            string
	AuthAnonKey        string
	AuthJWTSecret      string
	NominatimURL       string
	GeocodeUserAgent   string
	UnreadSyncInterval time.Duration
	LogLevel           string
	LogFormat          string
	WebRoot            string
	CORSOrigins        []string
}

// Flags are the server flags. Every flag can also be set from the
// environment.
var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "port",
		Usage:   "HTTP listen port",
		EnvVars: []string{"PORT"},
		Value:   "8080",
	},
	&cli.StringFlag{
		Name:    "aws-region",
		Usage:   "AWS region of the DynamoDB tables and S3 bucket",
		EnvVars: []string{"AWS_REGION"},
		Value:   "ap-south-1",
	},
	&cli.StringFlag{
		Name:    "s3-bucket",
		Usage:   "bucket receiving profile photo uploads",
		EnvVars: []string{"S3_BUCKET_NAME"},
	},
	&cli.StringFlag{
		Name:    "auth-url",
		Usage:   "base URL of the auth REST API, e.g. https://<project>.supabase.co/auth/v1",
		EnvVars: []string{"AUTH_URL"},
	},
	&cli.StringFlag{
		Name:    "auth-anon-key",
		Usage:   "public API key sent to the auth REST API",
		EnvVars: []string{"AUTH_ANON_KEY"},
	},
	&cli.StringFlag{
		Name:    "auth-jwt-secret",
		Usage:   "HS256 secret session tokens are signed with",
		EnvVars: []string{"AUTH_JWT_SECRET"},
	},
	&cli.StringFlag{
		Name:    "nominatim-url",
		Usage:   "reverse geocoding endpoint",
		EnvVars: []string{"NOMINATIM_URL"},
		Value:   "https://nominatim.openstreetmap.org",
	},
	&cli.StringFlag{
		Name:    "geocode-user-agent",
		Usage:   "User-Agent sent to the geocoding endpoint",
		EnvVars: []string{"GEOCODE_USER_AGENT"},
		Value:   "AmoraApp/1.0",
	},
	&cli.DurationFlag{
		Name:    "unread-sync-interval",
		Usage:   "period of the unread count reconciliation, 0 disables it",
		EnvVars: []string{"UNREAD_SYNC_INTERVAL"},
		Value:   30 * time.Second,
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "debug, info, warn or error",
		EnvVars: []string{"LOG_LEVEL"},
		Value:   "info",
	},
	&cli.StringFlag{
		Name:    "log-format",
		Usage:   "console or json",
		EnvVars: []string{"LOG_FORMAT"},
		Value:   "console",
	},
	&cli.StringFlag{
		Name:    "web-root",
		Usage:   "directory of the built web client, served behind the route guard",
		EnvVars: []string{"WEB_ROOT"},
		Value:   "./web",
	},
	&cli.StringSliceFlag{
		Name:    "cors-origins",
		Usage:   "allowed CORS origins",
		EnvVars: []string{"CORS_ORIGINS"},
		Value:   cli.NewStringSlice("*"),
	},
}

// FromContext reads the flags of c.
func FromContext(c *cli.Context) (Config, error) {
	cfg := Config{
		Port:               c.String("port"),
		AWSRegion:          c.String("aws-region"),
		S3Bucket:           c.String("s3-bucket"),
		AuthURL:            strings.TrimRight(c.String("auth-url"), "/"),
		AuthAnonKey:        c.String("auth-anon-key"),
		AuthJWTSecret:      c.String("auth-jwt-secret"),
		NominatimURL:       c.String("nominatim-url"),
		GeocodeUserAgent:   c.String("geocode-user-agent"),
		UnreadSyncInterval: c.Duration("unread-sync-interval"),
		LogLevel:           c.String("log-level"),
		LogFormat:          c.String("log-format"),
		WebRoot:            c.String("web-root"),
		CORSOrigins:        c.StringSlice("cors-origins"),
	}
	return cfg, cfg.Validate()
}

// Validate reports missing settings the server cannot start without.
func (c Config) Validate() error {
	var missing []string
	if c.AuthJWTSecret == "" {
		missing = append(missing, "auth-jwt-secret")
	}
	if c.S3Bucket == "" {
		missing = append(missing, "s3-bucket")
	}
	if c.UnreadSyncInterval < 0 {
		return errors.New("unread-sync-interval must not be negative")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
