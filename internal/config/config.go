package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Shopify     ShopifyConfig
	Mysql       MysqlConfig
	Importer    ImporterConfig
	Worker      WorkerConfig
	Throttle    ThrottleConfig
	Web         WebConfig
	TelegramBot TelegramBotConfig
}

type ShopifyConfig struct {
	ShopDomain string
	Token      string
	APIVer     string
	LocationID string
	Timeout    time.Duration
	// Minimum spacing between consecutive GraphQL calls.
	MinRequestInterval time.Duration
}

type MysqlConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

type ImporterConfig struct {
	// PVP = cost * PriceMargin, rounded to cents.
	PriceMargin float64
	UploadDir   string
}

type WorkerConfig struct {
	BatchSize      int
	GroupByProduct bool
	MaxRetries     int
	// Polling interval for watch mode; zero disables watching.
	WatchInterval time.Duration
}

type ThrottleConfig struct {
	FloorTokens  float64
	GrowthFactor float64
	MinBatchSize int
	MaxBatchSize int
}

type WebConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type TelegramBotConfig struct {
	ChatId string
	Token  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shopDomain, err := requiredString("SHOPIFY_SHOP_URL")
	if err != nil {
		return nil, err
	}
	token, err := requiredString("SHOPIFY_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	mysqlPassword, err := requiredString("MYSQL_PASSWORD")
	if err != nil {
		return nil, err
	}

	mysqlPort, err := intWithDefault("MYSQL_PORT", 3306)
	if err != nil {
		return nil, err
	}
	batchSize, err := intWithDefault("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	maxBatchSize, err := intWithDefault("MAX_BATCH_SIZE", 250)
	if err != nil {
		return nil, err
	}
	maxRetries, err := intWithDefault("MAX_QUEUE_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	priceMargin, err := floatWithDefault("PRICE_MARGIN", 2.2)
	if err != nil {
		return nil, err
	}
	throttleFloor, err := floatWithDefault("THROTTLE_FLOOR", 200)
	if err != nil {
		return nil, err
	}
	throttleGrowth, err := floatWithDefault("THROTTLE_GROWTH", 1.5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Shopify: ShopifyConfig{
			ShopDomain:         shopDomain,
			Token:              token,
			APIVer:             stringWithDefault("SHOPIFY_API_VERSION", "2024-07"),
			LocationID:         stringWithDefault("SHOPIFY_LOCATION_ID", ""),
			Timeout:            durationWithDefault("REQUEST_TIMEOUT", 30*time.Second),
			MinRequestInterval: durationWithDefault("MIN_REQUEST_INTERVAL", 100*time.Millisecond),
		},
		Mysql: MysqlConfig{
			Host:     stringWithDefault("MYSQL_HOST", "localhost"),
			Port:     mysqlPort,
			Username: stringWithDefault("MYSQL_USER", "root"),
			Password: mysqlPassword,
			Database: stringWithDefault("MYSQL_DATABASE", "catalog_sync"),
		},
		Importer: ImporterConfig{
			PriceMargin: priceMargin,
			UploadDir:   stringWithDefault("UPLOAD_DIR", "uploads"),
		},
		Worker: WorkerConfig{
			BatchSize:      batchSize,
			GroupByProduct: boolWithDefault("GROUP_BY_PRODUCT", true),
			MaxRetries:     maxRetries,
			WatchInterval:  durationWithDefault("WATCH_INTERVAL", 0),
		},
		Throttle: ThrottleConfig{
			FloorTokens:  throttleFloor,
			GrowthFactor: throttleGrowth,
			MinBatchSize: minInt(batchSize, maxBatchSize),
			MaxBatchSize: maxBatchSize,
		},
		Web: WebConfig{
			Port:            stringWithDefault("HTTP_PORT", "8080"),
			ReadTimeout:     durationWithDefault("READ_TIMEOUT", 5*time.Second),
			WriteTimeout:    durationWithDefault("WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: durationWithDefault("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		TelegramBot: TelegramBotConfig{
			ChatId: stringWithDefault("TELEGRAM_CHAT_ID", ""),
			Token:  stringWithDefault("TELEGRAM_BOT_TOKEN", ""),
		},
	}

	return cfg, nil
}

func minInt(a, b int) int {
	if a <= b {
		return a
	}
	return b
}
