package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shengyanli1982/toolkit/pkg/httptool"
	"github.com/stretchr/testify/assert"
)

func TestResponseFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Success Response Format", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		testData := map[string]interface{}{
			"rx": 100,
			"tx": 98,
		}

		Success(testData).JSON(c, http.StatusOK)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

		var response httptool.BaseHttpResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)

		assert.Equal(t, int64(CodeSuccess), response.Code)
		assert.Equal(t, "", response.ErrorMessage)
		assert.Nil(t, response.ErrorDetail)
		assert.NotNil(t, response.Data)
	})

	t.Run("Error Response Format", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		Error(CodeInternalError, "metrics registry not initialized").JSON(c, http.StatusInternalServerError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var response httptool.BaseHttpResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)

		assert.Equal(t, int64(CodeInternalError), response.Code)
		assert.Equal(t, "metrics registry not initialized", response.ErrorMessage)
		assert.Nil(t, response.Data)
	})

	t.Run("Error Response With Detail", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		Error(CodeNotFound, "metrics registry not available").
			WithDetail("no collector registered").
			JSON(c, http.StatusNotFound)

		var response httptool.BaseHttpResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)

		assert.Equal(t, int64(CodeNotFound), response.Code)
		assert.Equal(t, "no collector registered", response.ErrorDetail)
	})
}

func TestGetResponse(t *testing.T) {
	builder := Success("payload")
	response := builder.GetResponse()

	assert.Equal(t, int64(CodeSuccess), response.Code)
	assert.Equal(t, "payload", response.Data)
}
