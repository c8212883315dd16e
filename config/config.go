// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/pubsink/internal/batchcodec"
)

// Config aggregates configuration for the application.
// Each field is owned by its respective section.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// SourceConfig selects and configures the message source.
type SourceConfig struct {
	// Backend is "gcp" or "kafka".
	Backend string `mapstructure:"backend"`

	// Topic is the subscription ID for gcp, or the topic name for kafka.
	Topic string `mapstructure:"topic"`

	// ProjectID is the GCP project. Falls back to GCP_PROJECT_ID when empty.
	ProjectID string `mapstructure:"project_id"`

	Kafka KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig holds the Kafka consumer settings.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	GroupID string   `mapstructure:"group_id"`
}

// SinkConfig selects and configures the object storage sink.
type SinkConfig struct {
	// Backend is "s3" or "file".
	Backend string `mapstructure:"backend"`

	// OutputDirectory names the bucket and optional key prefix, e.g.
	// "my-bucket/archive/logs". An s3:// or gs:// scheme is accepted.
	OutputDirectory string `mapstructure:"output_directory"`

	S3   S3Config   `mapstructure:"s3"`
	File FileConfig `mapstructure:"file"`
}

// S3Config holds the S3 client settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
}

// FileConfig holds the file sink settings.
type FileConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PipelineConfig holds the windowing and encoding settings.
type PipelineConfig struct {
	// CompressionType is one of "gzip", "deflate", "bz2", "uncompressed".
	CompressionType string `mapstructure:"compression_type"`

	WindowIntervalSec  int `mapstructure:"window_interval_sec"`
	NumShards          int `mapstructure:"num_shards"`
	AllowedLatenessSec int `mapstructure:"allowed_lateness_sec"`

	FlushInterval   time.Duration `mapstructure:"flush_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			Backend: "gcp",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "pubsink",
			},
		},
		Sink: SinkConfig{
			Backend: "s3",
		},
		Pipeline: PipelineConfig{
			CompressionType:    "gzip",
			WindowIntervalSec:  60,
			NumShards:          5,
			AllowedLatenessSec: 0,
			ShutdownTimeout:    30 * time.Second,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "PUBSINK" and the dot character
// in keys is replaced by an underscore. For example, "sink.output_directory"
// becomes "PUBSINK_SINK_OUTPUT_DIRECTORY".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("PUBSINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("source.kafka.brokers"); b != "" {
		cfg.Source.Kafka.Brokers = strings.Split(b, ",")
	}
	return cfg, nil
}

// Validate reports the first fatal configuration error, before any source or
// sink connection is attempted.
func (c *Config) Validate() error {
	switch c.Source.Backend {
	case "gcp", "kafka":
	default:
		return fmt.Errorf("unknown source backend %q", c.Source.Backend)
	}
	if c.Source.Topic == "" {
		return fmt.Errorf("source.topic is required")
	}
	if c.Source.Backend == "kafka" && len(c.Source.Kafka.Brokers) == 0 {
		return fmt.Errorf("source.kafka.brokers is required for the kafka backend")
	}

	switch c.Sink.Backend {
	case "s3", "file":
	default:
		return fmt.Errorf("unknown sink backend %q", c.Sink.Backend)
	}
	if c.Sink.OutputDirectory == "" {
		return fmt.Errorf("sink.output_directory is required")
	}

	if _, err := batchcodec.ParseMethod(c.Pipeline.CompressionType); err != nil {
		return err
	}
	if c.Pipeline.WindowIntervalSec <= 0 {
		return fmt.Errorf("pipeline.window_interval_sec must be positive, got %d", c.Pipeline.WindowIntervalSec)
	}
	if c.Pipeline.NumShards <= 0 {
		return fmt.Errorf("pipeline.num_shards must be positive, got %d", c.Pipeline.NumShards)
	}
	if c.Pipeline.AllowedLatenessSec < 0 {
		return fmt.Errorf("pipeline.allowed_lateness_sec must not be negative, got %d", c.Pipeline.AllowedLatenessSec)
	}
	return nil
}

// WindowInterval returns the window size as a duration.
func (c *PipelineConfig) WindowInterval() time.Duration {
	return time.Duration(c.WindowIntervalSec) * time.Second
}

// AllowedLateness returns the lateness grace as a duration.
func (c *PipelineConfig) AllowedLateness() time.Duration {
	return time.Duration(c.AllowedLatenessSec) * time.Second
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
