package webserver

func (web *WebServer) routes() {
	web.router.HandleFunc("/api/v1.0/streams", web.streamsHdlr).Methods("GET")
	web.router.HandleFunc("/api/v1.0/streams/{id:[0-9]+}", web.streamHdlr).Methods("GET")
	web.router.HandleFunc("/api/v1.0/streams/{id:[0-9]+}/volume", web.volumeHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/streams/{id:[0-9]+}/blocked", web.blockedHdlr)
	web.router.HandleFunc("/ws", web.webSocketHdlr)
}
