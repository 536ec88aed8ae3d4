/*
 * Copyright (c) 2022 Cisco and/or its affiliates.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at:
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config
package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/aler9/gortsplib/pkg/base"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/media-streaming-mesh/msm-relay/internal/util"
)

// Cfg holds the configuration data for the relay application
type Cfg struct {
	Protocol         string         `yaml:"protocol"`
	Host             string         `yaml:"host"`
	Rtsp             *rtspOpts      `yaml:"rtsp"`
	Grpc             *grpcOpts      `yaml:"grpc"`
	Api              *apiOpts       `yaml:"api"`
	Etcd             *etcdOpts      `yaml:"etcd"`
	Logger           *logrus.Logger `yaml:"-"`
	SupportedMethods []base.Method  `yaml:"-"`
}

type rtspOpts struct {
	Port string `yaml:"port"`
}

type grpcOpts struct {
	Port string `yaml:"port"`
}

type apiOpts struct {
	Port string `yaml:"port"`
}

type etcdOpts struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
}

// Default returns the configuration used when nothing is set.
func Default() *Cfg {
	return &Cfg{
		Protocol: "rtsp",
		Rtsp:     &rtspOpts{Port: "8554"},
		Grpc:     &grpcOpts{Port: "9000"},
		Api:      &apiOpts{Port: "8080"},
		Etcd:     &etcdOpts{DialTimeout: 10 * time.Second},
		SupportedMethods: []base.Method{
			base.Options,
			base.Describe,
			base.Setup,
			base.Play,
			base.Pause,
			base.Teardown,
		},
	}
}

// New initializes the configuration plugin and is shared across
// the internal plugins via the API interface
func New() *Cfg {
	cf, err := Load(os.Args[1:])
	if err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	return cf
}

// Load reads the optional YAML file named by -config, then applies the
// flags that were set explicitly.
func Load(args []string) (*Cfg, error) {
	cf := Default()
	fs := flag.NewFlagSet("msm-relay", flag.ContinueOnError)

	configFile := fs.String("config", "", "path to a YAML configuration file")
	protocol := fs.String("protocol", cf.Protocol, "control plane protocol mode (rtsp)")
	host := fs.String("host", "", "address advertised in session descriptions (default: first non-loopback IPv4)")
	rtspPort := fs.String("rtspPort", cf.Rtsp.Port, "port to listen for RTSP on")
	grpcPort := fs.String("grpcPort", cf.Grpc.Port, "port to listen for GRPC on")
	apiPort := fs.String("apiPort", cf.Api.Port, "port to serve the status API on, empty to disable")
	etcd := fs.String("etcd", "", "comma separated etcd endpoints to announce sources to")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configFile != "" {
		if err := cf.readFile(*configFile); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "protocol":
			cf.Protocol = *protocol
		case "host":
			cf.Host = *host
		case "rtspPort":
			cf.Rtsp.Port = *rtspPort
		case "grpcPort":
			cf.Grpc.Port = *grpcPort
		case "apiPort":
			cf.Api.Port = *apiPort
		case "etcd":
			cf.Etcd.Endpoints = splitList(*etcd)
		}
	})

	if cf.Protocol != "rtsp" {
		return nil, fmt.Errorf("unsupported protocol '%s'", cf.Protocol)
	}
	if cf.Host == "" {
		cf.Host = util.GetHostIPv4Address()
	}

	cf.Logger = logrus.New()
	cf.Logger.SetOutput(os.Stdout)
	setLogLvl(cf.Logger)
	setLogType(cf.Logger)

	return cf, nil
}

// RTSPURL is the base URL clients reach the RTSP server at.
func (cf *Cfg) RTSPURL() string {
	return fmt.Sprintf("rtsp://%s/", net.JoinHostPort(cf.Host, cf.Rtsp.Port))
}

func (cf *Cfg) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cf); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// sets the log level of the logger
func setLogLvl(l *logrus.Logger) {
	logLevel := os.Getenv("LOG_LEVEL")

	switch logLevel {
	case "DEBUG":
		l.SetLevel(logrus.DebugLevel)
	case "WARN":
		l.SetLevel(logrus.WarnLevel)
	case "INFO":
		l.SetLevel(logrus.InfoLevel)
	case "ERROR":
		l.SetLevel(logrus.ErrorLevel)
	case "TRACE":
		l.SetLevel(logrus.TraceLevel)
	case "FATAL":
		l.SetLevel(logrus.FatalLevel)
	default:
		l.SetLevel(logrus.DebugLevel)
	}
}

// sets the log type of the logger
func setLogType(l *logrus.Logger) {
	logType := os.Getenv("LOG_TYPE")

	switch strings.ToLower(logType) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			PrettyPrint: true,
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:     true,
			DisableColors:   false,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
}
