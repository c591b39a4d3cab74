package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Mailbox fetch, every 5 minutes
	CronScheduleFetch string `env:"CRON_SCHEDULE_FETCH" envDefault:"0 */5 * * * *"`
}
