package config

import "github.com/joho/godotenv"

func godotenvLoad() error {
	return godotenv.Load()
}

func godotenvLoadFile(path string) error {
	return godotenv.Load(path)
}
