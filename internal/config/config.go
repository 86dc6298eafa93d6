package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"github.com/vitos/signal_trader/internal/domain"
)

type Config struct {
	Telegram TelegramClient `mapstructure:"telegram_client"`
	Bot      TelegramBot    `mapstructure:"telegram_bot"`
	OpenAI   OpenAI         `mapstructure:"openai"`
	Accounts []Account      `mapstructure:"accounts"`
	Policy   Policy         `mapstructure:"policy"`
	Exchange Exchange       `mapstructure:"exchange"`
	Logging  Logging        `mapstructure:"logging"`
}

type TelegramClient struct {
	Phone       string `mapstructure:"phone"`
	AppID       int    `mapstructure:"app_id"`
	AppHash     string `mapstructure:"app_hash"`
	SessionPath string `mapstructure:"session_path"`
	PeersPath   string `mapstructure:"peers_path"`
}

type TelegramBot struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type OpenAI struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type Account struct {
	ID             string  `mapstructure:"id"`
	Name           string  `mapstructure:"name"`
	APIKey         string  `mapstructure:"api_key"`
	Secret         string  `mapstructure:"secret"`
	AllowedChatIDs []int64 `mapstructure:"allowed_chat_ids"`
}

type Policy struct {
	DBPath       string `mapstructure:"db_path"`
	UserID       string `mapstructure:"user_id"`
	PollMs       int    `mapstructure:"poll_ms"`
	JournalLimit int    `mapstructure:"journal_limit"`
}

type Exchange struct {
	RESTEndpoint string   `mapstructure:"rest_endpoint"`
	WSEndpoint   string   `mapstructure:"ws_endpoint"`
	WatchSymbols []string `mapstructure:"watch_symbols"`
}

type Logging struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads the config file and environment overrides. Env keys use the
// SignalTrader prefix with dots replaced by underscores, e.g.
// SignalTrader_OPENAI_API_KEY.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SignalTrader")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.AppID == 0 || c.Telegram.AppHash == "" || c.Telegram.Phone == "" {
		return fmt.Errorf("missing required telegram client configuration")
	}
	if c.Bot.Token == "" || c.Bot.ChatID == 0 {
		return fmt.Errorf("missing required telegram bot configuration")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("missing OpenAI API key")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("no exchange accounts configured")
	}

	anyChats := false
	for _, a := range c.Accounts {
		if len(a.AllowedChatIDs) > 0 {
			anyChats = true
		}
	}
	if !anyChats {
		return fmt.Errorf("no chat IDs configured for any exchange account")
	}
	return nil
}

// DomainAccounts maps the configured accounts in declaration order.
func (c *Config) DomainAccounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		accounts = append(accounts, domain.Account{
			ID:             a.ID,
			Name:           a.Name,
			APIKey:         a.APIKey,
			Secret:         a.Secret,
			AllowedChatIDs: a.AllowedChatIDs,
		})
	}
	return accounts
}

// AllAllowedChatIDs is the union of every account's allowed chats, in
// declaration order.
func (c *Config) AllAllowedChatIDs() []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, a := range c.Accounts {
		for _, id := range a.AllowedChatIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
