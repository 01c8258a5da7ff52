package main

//go:generate swag init -g cmd/watchlistd/main.go -o docs

// @title           solwatch session API
// @version         0.1.0
// @description     Local watchlist session: groups, tokens, sorting, refresh and sync status.
// @host            localhost:8090
// @BasePath        /
// @schemes         http
