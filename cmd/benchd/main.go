// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// benchd serves benchmark result files over HTTP: an index of available
// runs plus the raw JSON or newline-delimited JSON payloads, for dashboards
// that chart codec throughput over time.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type serverConfig struct {
	Addr       string `yaml:"addr"`
	ResultsDir string `yaml:"results_dir"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{Addr: ":8080", ResultsDir: "results"}
}

func loadConfig(path string) (serverConfig, error) {
	cfg := defaultServerConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

type resultEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func listResults(dir string) ([]resultEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]resultEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".json" && ext != ".ndjson" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, resultEntry{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	return out, nil
}

func newRouter(cfg serverConfig, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/results", func(c *gin.Context) {
		entries, err := listResults(cfg.ResultsDir)
		if err != nil {
			log.Warn("list results", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list results"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": entries})
	})

	router.GET("/results/:name", func(c *gin.Context) {
		name := c.Param("name")
		// Result names are flat files; anything path-like is rejected.
		if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result name"})
			return
		}
		path := filepath.Join(cfg.ResultsDir, name)
		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no such result"})
			return
		}
		if filepath.Ext(name) == ".ndjson" {
			c.Header("Content-Type", "application/x-ndjson")
		} else {
			c.Header("Content-Type", "application/json")
		}
		c.File(path)
	})

	return router
}

func main() {
	var configPath string
	var addr string
	var resultsDir string

	root := &cobra.Command{
		Use:   "benchd",
		Short: "Serve benchmark result files over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("results-dir") {
				cfg.ResultsDir = resultsDir
			}

			log.Info("benchd listening",
				zap.String("addr", cfg.Addr),
				zap.String("results_dir", cfg.ResultsDir))
			return newRouter(cfg, log).Run(cfg.Addr)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config")
	root.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	root.Flags().StringVar(&resultsDir, "results-dir", "results", "directory holding result files")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
