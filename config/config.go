package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AitomaLab/ugc-engine/poll"
	"github.com/joho/godotenv"
)

// StorageConfig holds the S3-compatible object storage settings used for
// staging intermediate media and publishing final videos.
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	PublicURL       string
	UseSSL          bool
}

type Config struct {
	Environment  string
	HTTPPort     string
	HTTPSPort    string
	Domains      []string
	CertCacheDir string

	DatabaseURL string

	KieAPIURL string
	KieAPIKey string

	ElevenLabsAPIURL  string
	ElevenLabsAPIKey  string
	ElevenLabsModelID string
	FallbackVoiceID   string

	VideoModel      string
	VideoResolution string
	LipSyncModel    string
	LipSyncQuality  string
	ImageModel      string
	AnimateModel    string
	AspectRatio     string
	ClipDuration    int

	VideoPoll poll.Schedule
	ImagePoll poll.Schedule
	MusicPoll poll.Schedule

	Storage StorageConfig

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	TwilioToNumber   string

	OutputDir string
	TempDir   string
	LogDir    string

	CheckInterval     time.Duration
	MaxConcurrentRuns int
}

// ModelRegistry maps the friendly model names carried on jobs to the
// identifiers the generation API expects.
var ModelRegistry = map[string]string{
	"seedance-1.5-pro": "bytedance/seedance-1.5-pro",
	"seedance-2.0":     "seedance-2-0",
	"veo-3.1-fast":     "veo3_fast",
	"veo-3.1":          "veo3",
	"kling-2.6":        "kling-2.6/image-to-video",
}

// silentModels produce video with no audio track; scenes generated with one
// of these get a synthesized voiceover overlaid after the fetch.
var silentModels = map[string]bool{
	"kling-2.6":                true,
	"kling-2.6/image-to-video": true,
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		HTTPPort:     getEnv("HTTP_PORT", "8086"),
		HTTPSPort:    getEnv("HTTPS_PORT", "443"),
		Domains:      []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir: getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KieAPIURL: getEnv("KIE_API_URL", "https://api.kie.ai"),
		KieAPIKey: getEnv("KIE_API_KEY", ""),

		ElevenLabsAPIURL:  getEnv("ELEVENLABS_API_URL", "https://api.elevenlabs.io/v1/text-to-speech"),
		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsModelID: getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		FallbackVoiceID:   getEnv("ELEVENLABS_FALLBACK_VOICE", "pNInz6obpgDQGcFmaJgB"),

		VideoModel:      getEnv("VIDEO_MODEL", "seedance-1.5-pro"),
		VideoResolution: getEnv("VIDEO_RESOLUTION", "720p"),
		LipSyncModel:    getEnv("LIPSYNC_MODEL", "infinitalk/from-audio"),
		LipSyncQuality:  getEnv("LIPSYNC_QUALITY", "720p"),
		ImageModel:      getEnv("IMAGE_MODEL", "nano-banana-pro"),
		AnimateModel:    getEnv("ANIMATE_MODEL", "kling-2.6"),
		AspectRatio:     "9:16",
		ClipDuration:    8,

		VideoPoll: poll.Schedule{
			BurstInterval:  10 * time.Second,
			SteadyInterval: 20 * time.Second,
			Timeout:        20 * time.Minute,
		},
		ImagePoll: poll.Schedule{
			BurstInterval:  5 * time.Second,
			SteadyInterval: 10 * time.Second,
			Timeout:        10 * time.Minute,
		},
		MusicPoll: poll.Schedule{
			BurstInterval:  10 * time.Second,
			SteadyInterval: 15 * time.Second,
			Timeout:        8 * time.Minute,
		},

		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "ugc-media"),
			PublicURL:       getEnv("STORAGE_PUBLIC_URL", ""),
			UseSSL:          getEnvAsBool("STORAGE_USE_SSL", false),
		},

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		TwilioToNumber:   getEnv("TWILIO_TO_NUMBER", ""),

		OutputDir: getEnv("OUTPUT_DIR", "outputs"),
		TempDir:   getEnv("TEMP_DIR", "temp"),
		LogDir:    getEnv("LOG_DIR", "logs"),

		CheckInterval:     time.Duration(getEnvAsInt("CHECK_INTERVAL", 30)) * time.Second,
		MaxConcurrentRuns: getEnvAsInt("MAX_CONCURRENT_RUNS", 2),
	}
}

// Validate checks the settings every run depends on. It is called once at
// startup so a misconfigured worker fails before claiming any job.
func (c Config) Validate() error {
	var missing []string
	if c.KieAPIKey == "" {
		missing = append(missing, "KIE_API_KEY")
	}
	if c.ElevenLabsAPIKey == "" {
		missing = append(missing, "ELEVENLABS_API_KEY")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ResolveModel maps a friendly model name to its API identifier, passing
// unknown names through unchanged so new API ids work without a release.
func ResolveModel(name string) string {
	if id, ok := ModelRegistry[name]; ok {
		return id
	}
	return name
}

// IsSilentModel reports whether the given model (friendly name or API id)
// produces video without an audio track.
func IsSilentModel(name string) bool {
	return silentModels[name] || silentModels[ResolveModel(name)]
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
