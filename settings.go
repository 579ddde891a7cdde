package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const SETTINGS_VERSION = 1

var gs settings = gsdef

// settingsLoaded reports whether settings were successfully loaded from disk.
var settingsLoaded bool

var gsdef settings = settings{
	Version: SETTINGS_VERSION,

	Host:              "localhost:3030",
	Path:              "/ws",
	ReconnectDelayMS:  1000,
	IdleTimeoutMS:     30000,
	MaxFrameMB:        32,
	WindowWidth:       1280,
	WindowHeight:      720,
	DefaultGridWidth:  800,
	DefaultGridHeight: 600,
	OwnershipOpacity:  0.7,
	ShowStatus:        true,
	ShowFPS:           false,
	LabelCacheMB:      16,
	LogDir:            "logs",
	VSync:             true,
}

type settings struct {
	Version int

	Host             string
	Path             string
	Secure           bool
	ReconnectDelayMS int
	IdleTimeoutMS    int
	MaxFrameMB       int

	WindowWidth  int
	WindowHeight int
	VSync        bool

	DefaultGridWidth  int
	DefaultGridHeight int
	OwnershipOpacity  float64
	ShowStatus        bool
	ShowFPS           bool
	LabelCacheMB      int

	LogDir string
}

const settingsFile = "settings.json"

// settingsEnvPrefix prefixes environment overrides, e.g. TERRASYNC_HOST.
const settingsEnvPrefix = "TERRASYNC"

// loadSettings reads settings.json from the data directory. A .env file in
// the working directory and TERRASYNC_* variables override the file.
// Out-of-range values fall back to their defaults.
func loadSettings() bool {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logWarn("load .env: %v", err)
	}

	v := newSettingsViper()
	settingsLoaded = false
	path := filepath.Join(dataDirPath, settingsFile)
	if data, err := os.ReadFile(path); err == nil {
		if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
			logWarn("parse settings: %v", err)
			v = newSettingsViper()
		} else if ver := v.GetInt("Version"); ver != SETTINGS_VERSION {
			logWarn("settings version %d, want %d; using defaults", ver, SETTINGS_VERSION)
			v = newSettingsViper()
		} else {
			settingsLoaded = true
		}
	}

	gs = gsdef
	gs.Host = v.GetString("Host")
	gs.Path = v.GetString("Path")
	gs.Secure = v.GetBool("Secure")
	gs.ReconnectDelayMS = v.GetInt("ReconnectDelayMS")
	gs.IdleTimeoutMS = v.GetInt("IdleTimeoutMS")
	gs.MaxFrameMB = v.GetInt("MaxFrameMB")
	gs.WindowWidth = v.GetInt("WindowWidth")
	gs.WindowHeight = v.GetInt("WindowHeight")
	gs.VSync = v.GetBool("VSync")
	gs.DefaultGridWidth = v.GetInt("DefaultGridWidth")
	gs.DefaultGridHeight = v.GetInt("DefaultGridHeight")
	gs.OwnershipOpacity = v.GetFloat64("OwnershipOpacity")
	gs.ShowStatus = v.GetBool("ShowStatus")
	gs.ShowFPS = v.GetBool("ShowFPS")
	gs.LabelCacheMB = v.GetInt("LabelCacheMB")
	gs.LogDir = v.GetString("LogDir")

	clampSettings()
	return settingsLoaded
}

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(settingsEnvPrefix)
	v.AutomaticEnv()
	setViperDefaults(v, gsdef)
	return v
}

func setViperDefaults(v *viper.Viper, d settings) {
	v.SetDefault("Version", d.Version)
	v.SetDefault("Host", d.Host)
	v.SetDefault("Path", d.Path)
	v.SetDefault("Secure", d.Secure)
	v.SetDefault("ReconnectDelayMS", d.ReconnectDelayMS)
	v.SetDefault("IdleTimeoutMS", d.IdleTimeoutMS)
	v.SetDefault("MaxFrameMB", d.MaxFrameMB)
	v.SetDefault("WindowWidth", d.WindowWidth)
	v.SetDefault("WindowHeight", d.WindowHeight)
	v.SetDefault("VSync", d.VSync)
	v.SetDefault("DefaultGridWidth", d.DefaultGridWidth)
	v.SetDefault("DefaultGridHeight", d.DefaultGridHeight)
	v.SetDefault("OwnershipOpacity", d.OwnershipOpacity)
	v.SetDefault("ShowStatus", d.ShowStatus)
	v.SetDefault("ShowFPS", d.ShowFPS)
	v.SetDefault("LabelCacheMB", d.LabelCacheMB)
	v.SetDefault("LogDir", d.LogDir)
}

func clampSettings() {
	if gs.Host == "" {
		gs.Host = gsdef.Host
	}
	if !strings.HasPrefix(gs.Path, "/") {
		gs.Path = "/" + gs.Path
	}
	if gs.ReconnectDelayMS < 50 || gs.ReconnectDelayMS > 60000 {
		gs.ReconnectDelayMS = gsdef.ReconnectDelayMS
	}
	if gs.IdleTimeoutMS < 1000 || gs.IdleTimeoutMS > 600000 {
		gs.IdleTimeoutMS = gsdef.IdleTimeoutMS
	}
	if gs.MaxFrameMB < 1 || gs.MaxFrameMB > 1024 {
		gs.MaxFrameMB = gsdef.MaxFrameMB
	}
	if gs.WindowWidth < 320 {
		gs.WindowWidth = gsdef.WindowWidth
	}
	if gs.WindowHeight < 240 {
		gs.WindowHeight = gsdef.WindowHeight
	}
	if gs.DefaultGridWidth <= 0 {
		gs.DefaultGridWidth = gsdef.DefaultGridWidth
	}
	if gs.DefaultGridHeight <= 0 {
		gs.DefaultGridHeight = gsdef.DefaultGridHeight
	}
	if gs.OwnershipOpacity < 0 || gs.OwnershipOpacity > 1 {
		gs.OwnershipOpacity = gsdef.OwnershipOpacity
	}
	if gs.LabelCacheMB < 1 || gs.LabelCacheMB > 1024 {
		gs.LabelCacheMB = gsdef.LabelCacheMB
	}
}

// serverURL is the websocket endpoint derived from the configured host.
func serverURL() string {
	scheme := "ws"
	if gs.Secure {
		scheme = "wss"
	}
	return scheme + "://" + gs.Host + gs.Path
}

func saveSettings() {
	data, err := json.MarshalIndent(gs, "", "  ")
	if err != nil {
		logError("save settings: %v", err)
		return
	}
	if err := os.MkdirAll(dataDirPath, 0755); err != nil {
		logError("save settings: %v", err)
		return
	}
	path := filepath.Join(dataDirPath, settingsFile)
	if err := os.WriteFile(path+".tmp", data, 0644); err != nil {
		logError("save settings: %v", err)
		return
	}
	if err := os.Rename(path+".tmp", path); err != nil {
		logError("save settings: %v", err)
	}
}
