package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	logger "weatheretl/pkg/batch/util/logger"
	"weatheretl/weather/app"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// シグナルハンドリング (Ctrl+C などで安全に終了するため)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("シグナル '%v' を受信しました。ジョブの停止を試みます...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	// data/raw_weather.json を data/weather_data.csv に変換します。
	exitCode := app.RunApplication(ctx, envFilePath, "convertWeatherJob")
	cancel()
	os.Exit(exitCode)
}
