package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gonbs/app"
	"gonbs/domain/nbs"
	"gonbs/internal/errors"
	"gonbs/internal/tfce"
)

func (s *Server) handleHealth(c *gin.Context) {
	s.respond(c, gin.H{"status": "ok"})
}

func (s *Server) handleGLM(c *gin.Context) {
	var req glmRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	d, err := req.design()
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.service.FitGLM(c.Request.Context(), d)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleEnhance(c *gin.Context) {
	method := tfce.Method(c.Param("method"))

	var req matrixRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	m, err := matrixFromRows("matrix", req.Matrix)
	if err != nil {
		s.writeError(c, err)
		return
	}
	params, err := req.resolve(s.service.Settings().Params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.service.Enhance(c.Request.Context(), m, method, params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, matrixResponse{RunID: res.RunID.String(), Method: res.Method, Matrix: res.Matrix.Rows()})
}

func (s *Server) handleSparseTFCE(c *gin.Context) {
	var req sparseTFCERequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	i, err := zeroBased("i", req.I)
	if err != nil {
		s.writeError(c, err)
		return
	}
	j, err := zeroBased("j", req.J)
	if err != nil {
		s.writeError(c, err)
		return
	}
	params, err := req.resolve(s.service.Settings().Params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.service.SparseTFCE(c.Request.Context(), nbs.EdgeList{I: i, J: j, V: req.V}, req.NumNodes, params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleReferenceAdjacency(c *gin.Context) {
	var req referenceAdjacencyRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	neighbors := make([][]int, len(req.Neighbors))
	for v, nb := range req.Neighbors {
		converted, err := zeroBased("neighbors["+strconv.Itoa(v)+"]", nb)
		if err != nil {
			s.writeError(c, err)
			return
		}
		neighbors[v] = converted
	}
	params, err := req.resolve(s.service.Settings().Params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.service.ReferenceAdjacency(c.Request.Context(), req.Values, neighbors, params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleSparseClusters(c *gin.Context) {
	var req sparseClustersRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	i, err := zeroBased("i", req.I)
	if err != nil {
		s.writeError(c, err)
		return
	}
	j, err := zeroBased("j", req.J)
	if err != nil {
		s.writeError(c, err)
		return
	}
	res, err := s.service.SparseClusters(c.Request.Context(), i, j, req.NumNodes)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleNetworkPValues(c *gin.Context) {
	var req networkRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	bank := nbs.PermutationBank{Replicates: req.Permutations}
	res, err := s.service.NetworkPValues(c.Request.Context(), req.Stats, bank, req.Labels, req.Alpha)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleMaxComponent(c *gin.Context) {
	var req maxComponentRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	observed, err := matrixFromRows("observed", req.Observed)
	if err != nil {
		s.writeError(c, err)
		return
	}
	bank := make([]nbs.Matrix, len(req.Permutations))
	for p, rows := range req.Permutations {
		if bank[p], err = matrixFromRows("permutations["+strconv.Itoa(p)+"]", rows); err != nil {
			s.writeError(c, err)
			return
		}
	}
	res, err := s.service.MaxComponentPValues(c.Request.Context(), observed, bank)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, maxComponentResponse{
		RunID:     res.RunID.String(),
		PValues:   res.PValues.Rows(),
		Statistic: res.Statistic.Rows(),
		Null:      res.Null,
		Summary:   res.Summary,
	})
}

func (s *Server) handlePipeline(c *gin.Context) {
	var req pipelineRequest
	if err := s.bind(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	params, err := req.resolve(s.service.Settings().Params)
	if err != nil {
		s.writeError(c, err)
		return
	}
	preq := app.PipelineRequest{
		Statistic: req.Statistic,
		NumNodes:  req.NumNodes,
		Bank:      nbs.PermutationBank{Replicates: req.Permutations},
		Labels:    req.Labels,
		Method:    tfce.Method(req.Method),
		Params:    params,
		Alpha:     req.Alpha,
	}
	if req.Design != nil {
		d, err := req.Design.design()
		if err != nil {
			s.writeError(c, err)
			return
		}
		preq.Design = &d
	}
	res, err := s.service.RunPipeline(c.Request.Context(), preq)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleGetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.writeError(c, errors.InvalidInput("run id must be a UUID"))
		return
	}
	run, err := s.service.GetRun(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, run)
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(c, errors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	runs, err := s.service.ListRuns(c.Request.Context(), nbs.RunKind(c.Query("kind")), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, gin.H{"runs": runs})
}
