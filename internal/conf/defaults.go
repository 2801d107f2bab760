// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration. The audio and feature geometry
// matches the 16 kHz speech-commands model: 30 ms windows every 20 ms,
// 40 mel bands, 49 slices.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "kws")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/kws.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("audio.source", "")
	viper.SetDefault("audio.samplerate", 16000)
	viper.SetDefault("audio.chunksize", 512)
	viper.SetDefault("audio.readtimeout", 100*time.Millisecond)
	viper.SetDefault("audio.ringcapacity", 64*1024)
	viper.SetDefault("audio.windowsize", 480)
	viper.SetDefault("audio.windowstride", 320)

	viper.SetDefault("features.fftsize", 512)
	viper.SetDefault("features.slicewidth", 40)
	viper.SetDefault("features.slicecount", 49)
	viper.SetDefault("features.lowerbandlimit", 125.0)
	viper.SetDefault("features.upperbandlimit", 7500.0)

	viper.SetDefault("model.path", "model/kws.tflite")
	viper.SetDefault("model.threads", 0)
	viper.SetDefault("model.labels", []string{"silence", "unknown", "yes", "no"})

	viper.SetDefault("detection.depth", 3)
	viper.SetDefault("detection.perframethreshold", 200)
	viper.SetDefault("detection.suppression", 1500*time.Millisecond)

	viper.SetDefault("pipeline.pollinterval", 10*time.Millisecond)
	viper.SetDefault("pipeline.maxslicespercycle", 0)

	viper.SetDefault("debugstream.enabled", false)
	viper.SetDefault("debugstream.output", "-")
	viper.SetDefault("debugstream.queuesize", 16)

	viper.SetDefault("indicator.enabled", true)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "kws/detections")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.urls", []string{})
	viper.SetDefault("notify.cooldown", 30*time.Second)
	viper.SetDefault("notify.ignorelabels", []string{"silence", "unknown"})
	viper.SetDefault("notify.timeout", 10*time.Second)

	viper.SetDefault("store.enabled", false)
	viper.SetDefault("store.type", StoreSQLite)
	viper.SetDefault("store.path", "kws.db")
	viper.SetDefault("store.mysql.host", "localhost")
	viper.SetDefault("store.mysql.port", "3306")
	viper.SetDefault("store.mysql.username", "kws")
	viper.SetDefault("store.mysql.database", "kws")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}
