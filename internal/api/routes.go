package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	s.router.GET("/models", s.modelHandler.ListModels)

	s.router.POST("/source", s.pipelineHandler.SwitchSource)
	s.router.PUT("/settings", s.pipelineHandler.UpdateSettings)
	s.router.GET("/status", s.pipelineHandler.Status)
	s.router.GET("/stats", s.pipelineHandler.Stats)

	detection := s.router.Group("/detection")
	{
		detection.POST("/start", s.pipelineHandler.StartDetection)
		detection.POST("/stop", s.pipelineHandler.StopDetection)
	}

	recording := s.router.Group("/recording")
	{
		recording.POST("/start", s.recordingHandler.Start)
		recording.POST("/stop", s.recordingHandler.Stop)
		recording.GET("/status", s.recordingHandler.Status)
		recording.GET("/export", s.recordingHandler.Export)
	}
}
