package main

//go:generate swag init -g cmd/cloud/main.go -o docs

// @title           solwatch cloud API
// @version         0.1.0
// @description     Shared watchlist persistence and the scheduled batch refresh.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
