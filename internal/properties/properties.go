package properties

import "os"

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

func OpenWeatherApiKey() string {
	return os.Getenv("OPENWEATHER_API_KEY")
}

// Comma separated lists, one secret per client id.
func CopernicusClientIDs() string {
	return os.Getenv("COPERNICUS_CLIENT_ID")
}
func CopernicusClientSecrets() string {
	return os.Getenv("COPERNICUS_CLIENT_SECRET")
}
func CopernicusTokenUrl() string {
	return os.Getenv("COPERNICUS_TOKEN_URL")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
