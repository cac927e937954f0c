package cmd

import (
	"strings"

	"github.com/jrife/sertree/storage/kv"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// wrapWidth is the number of characters help text is wrapped at
const wrapWidth = 50

// loadConfig reads .env files and makes every flag settable
// through a SERTREE_ environment variable, e.g. SERTREE_KEY_TYPE
func loadConfig(config *viper.Viper) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	config.SetEnvPrefix("sertree")
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	config.AutomaticEnv()
}

func storeOptions(config *viper.Viper) kv.PluginOptions {
	options := kv.PluginOptions{}

	if path := config.GetString("path"); path != "" {
		options["path"] = path
	}

	return options
}

func wrap(text string) string {
	var lines []string
	var line strings.Builder

	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > wrapWidth {
			lines = append(lines, line.String())
			line.Reset()
		}

		if line.Len() > 0 {
			line.WriteString(" ")
		}

		line.WriteString(word)
	}

	if line.Len() > 0 {
		lines = append(lines, line.String())
	}

	return strings.Join(lines, "\n")
}
