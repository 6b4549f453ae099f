package config

import (
	"flag"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Cli struct {
	HTTPAddress string
	APIToken    string

	WorkDir          string
	KeepLocalFiles   bool
	MaxInFlightJobs  int
	MaxUploadBytes   int64
	FFmpegPath       string
	FFprobePath      string
	SegmentLength    int
	ProbeTimeout     time.Duration
	TranscodeTimeout time.Duration

	StorageTransport    string
	StorageCLIPath      string
	StorageCLIConfig    string
	StoragePublisherURL *url.URL
	StorageAggregator   *url.URL
	StorageEpochs       int
	StorageTimeout      time.Duration
	UploadAttempts      int
	UploadBaseDelay     time.Duration
	UploadConcurrency   int

	LedgerURL     *url.URL
	LedgerToken   string
	LedgerHeaders map[string]string

	MetadataURL *url.URL
	MetadataKey string

	CatalogDBConnectionString string
	CatalogEnsureSchema       bool
	ProgressRedisURL          string
	ProgressTTL               time.Duration
	ManifestArchiveURL        string
}

func (cli *Cli) HasMetadataLookup() bool {
	return cli.MetadataURL != nil && cli.MetadataURL.String() != ""
}

// UploadDir is where sources are staged before their job starts
func (cli *Cli) UploadDir() string {
	return filepath.Join(cli.WorkDir, "uploads")
}

func parseURL(s string, dest **url.URL) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if _, err = url.ParseQuery(u.RawQuery); err != nil {
		return err
	}
	*dest = u
	return nil
}

func URLVarFlag(fs *flag.FlagSet, dest **url.URL, name, value, usage string) {
	if err := parseURL(value, dest); err != nil {
		panic(err)
	}
	fs.Func(name, usage, func(s string) error {
		return parseURL(s, dest)
	})
}

// AddrFlag handles host:port addresses, rejecting anything without a port
func AddrFlag(fs *flag.FlagSet, dest *string, name, value, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		_, _, err := net.SplitHostPort(s)
		if err != nil {
			return err
		}
		*dest = s
		return nil
	})
}

// CommaMapFlag handles `one=uno,two=dos` style values
func CommaMapFlag(fs *flag.FlagSet, dest *map[string]string, name string, value map[string]string, usage string) {
	*dest = value
	fs.Func(name, usage, func(s string) error {
		m := map[string]string{}
		if s == "" {
			*dest = m
			return nil
		}
		for _, pair := range strings.Split(s, ",") {
			kv := strings.SplitN(pair, "=", 2)
			if len(kv) != 2 {
				return fmt.Errorf("failed to parse keypairs, %s does not have format key=value", pair)
			}
			m[kv[0]] = kv[1]
		}
		*dest = m
		return nil
	})
}

// InvertedBool registers a `-no-<name>` flag that clears dest when set
type InvertedBool struct {
	Value *bool
}

func (f InvertedBool) String() string {
	if f.Value == nil {
		return ""
	}
	return fmt.Sprint(*f.Value)
}

func (f InvertedBool) Set(value string) error {
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return err
	}
	*f.Value = !boolValue
	return nil
}

func (f InvertedBool) IsBoolFlag() bool {
	return true
}

func InvertedBoolFlag(fs *flag.FlagSet, dest *bool, name string, value bool, usage string) {
	*dest = value
	fs.Var(InvertedBool{Value: dest}, fmt.Sprintf("no-%s", name), usage)
}
