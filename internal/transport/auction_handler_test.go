package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-house/internal/middleware"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (api *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func (api *testAPI) createUser(t *testing.T, email string) string {
	t.Helper()
	u, err := api.users.Register(context.Background(), email, "user")
	require.NoError(t, err)
	return u.ID.String()
}

func (api *testAPI) createAuction(t *testing.T, ownerID, amount string) AuctionView {
	t.Helper()
	w := api.do(t, http.MethodPost, "/api/auctions", CreateAuctionRequest{
		OwnerID:       ownerID,
		Title:         "Stratocaster",
		Description:   "Sunburst, 1965",
		StartTime:     api.now.Add(-time.Hour),
		EndTime:       api.now.Add(24 * time.Hour),
		StartingPrice: MoneyRequest{Amount: amount, Currency: "EUR"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var view AuctionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateAuction(t *testing.T) {
	api := newTestAPI()
	owner := api.createUser(t, "owner@example.com")

	view := api.createAuction(t, owner, "100.00")

	assert.Equal(t, owner, view.OwnerID)
	assert.Equal(t, "100.00 EUR", view.CurrentPrice.String())
	assert.Equal(t, "running", string(view.State))
	assert.True(t, view.Running)
	assert.Equal(t, 0, view.BidCount)
	assert.Nil(t, view.LatestBid)
	assert.Nil(t, view.Article)
	assert.Equal(t, 1, view.Version)
}

func TestCreateAuction_Rejections(t *testing.T) {
	api := newTestAPI()
	owner := api.createUser(t, "owner@example.com")

	valid := func() CreateAuctionRequest {
		return CreateAuctionRequest{
			OwnerID:       owner,
			Title:         "Lamp",
			StartTime:     api.now,
			EndTime:       api.now.Add(time.Hour),
			StartingPrice: MoneyRequest{Amount: "5", Currency: "EUR"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*CreateAuctionRequest)
		status int
	}{
		{"end before start", func(r *CreateAuctionRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }, http.StatusBadRequest},
		{"missing title", func(r *CreateAuctionRequest) { r.Title = "" }, http.StatusBadRequest},
		{"bad currency", func(r *CreateAuctionRequest) { r.StartingPrice.Currency = "EU" }, http.StatusBadRequest},
		{"zero price", func(r *CreateAuctionRequest) { r.StartingPrice.Amount = "0" }, http.StatusBadRequest},
		{"negative price", func(r *CreateAuctionRequest) { r.StartingPrice.Amount = "-3" }, http.StatusBadRequest},
		{"sub-scale price", func(r *CreateAuctionRequest) { r.StartingPrice.Amount = "0.00001" }, http.StatusBadRequest},
		{"price out of range", func(r *CreateAuctionRequest) { r.StartingPrice.Amount = "1000000000000000" }, http.StatusBadRequest},
		{"unknown owner", func(r *CreateAuctionRequest) { r.OwnerID = uuid.NewString() }, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			w := api.do(t, http.MethodPost, "/api/auctions", req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestPlaceBid_Flow(t *testing.T) {
	api := newTestAPI()
	owner := api.createUser(t, "owner@example.com")
	bidder := api.createUser(t, "bidder@example.com")
	auction := api.createAuction(t, owner, "10.00")
	bidsPath := "/api/auctions/" + auction.ID + "/bids"

	bid := func(amount string) *httptest.ResponseRecorder {
		return api.do(t, http.MethodPost, bidsPath, PlaceBidRequest{
			BidderID: bidder,
			Price:    MoneyRequest{Amount: amount, Currency: "EUR"},
		})
	}

	w := bid("12.00")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp BidResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, bidder, resp.Bid.BidderID)
	assert.Equal(t, 1, resp.Auction.BidCount)
	assert.Equal(t, "12.00 EUR", resp.Auction.CurrentPrice.String())
	require.NotNil(t, resp.Auction.LatestBid)
	assert.Equal(t, resp.Bid.ID, resp.Auction.LatestBid.ID)

	w = bid("12.00")
	require.Equal(t, http.StatusConflict, w.Code)
	errResp := decodeError(t, w)
	assert.Equal(t, map[string]interface{}{"amount": "12", "currency": "EUR"}, errResp.Error.Details["current_price"])

	w = bid("11.00")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = bid("15.50")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = api.do(t, http.MethodGet, bidsPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history BidHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Bids, 2)
	assert.Equal(t, "12.00 EUR", history.Bids[0].Price.String())
	assert.Equal(t, "15.50 EUR", history.Bids[1].Price.String())
}

func TestPlaceBid_Rejections(t *testing.T) {
	api := newTestAPI()
	owner := api.createUser(t, "owner@example.com")
	bidder := api.createUser(t, "bidder@example.com")
	auction := api.createAuction(t, owner, "10.00")
	bidsPath := "/api/auctions/" + auction.ID + "/bids"

	w := api.do(t, http.MethodPost, bidsPath, PlaceBidRequest{
		BidderID: bidder,
		Price:    MoneyRequest{Amount: "20", Currency: "USD"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "currency mismatch")

	w = api.do(t, http.MethodPost, bidsPath, PlaceBidRequest{
		BidderID: uuid.NewString(),
		Price:    MoneyRequest{Amount: "20", Currency: "EUR"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown bidder")

	w = api.do(t, http.MethodPost, "/api/auctions/"+uuid.NewString()+"/bids", PlaceBidRequest{
		BidderID: bidder,
		Price:    MoneyRequest{Amount: "20", Currency: "EUR"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code, "unknown auction")

	w = api.do(t, http.MethodPost, bidsPath, PlaceBidRequest{
		BidderID: bidder,
		Price:    MoneyRequest{Amount: "10.00001", Currency: "EUR"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "more than four decimals")

	w = api.do(t, http.MethodGet, "/api/auctions/"+auction.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code, "auction still loads after a rejected sub-scale bid")

	w = api.do(t, http.MethodPost, bidsPath, map[string]string{"bidder_id": bidder})
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing price")

	api.now = api.now.Add(48 * time.Hour)
	w = api.do(t, http.MethodPost, bidsPath, PlaceBidRequest{
		BidderID: bidder,
		Price:    MoneyRequest{Amount: "20", Currency: "EUR"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "ended auction")

	w = api.do(t, http.MethodGet, "/api/auctions/"+auction.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view AuctionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "ended", string(view.State))
	assert.False(t, view.Running)
	assert.Equal(t, 0, view.BidCount)
}

func TestAddArticle(t *testing.T) {
	api := newTestAPI()
	owner := api.createUser(t, "owner@example.com")
	auction := api.createAuction(t, owner, "10.00")
	path := "/api/auctions/" + auction.ID + "/article"

	w := api.do(t, http.MethodPost, path, AddArticleRequest{Name: "Stratocaster", Description: "Fender"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view AuctionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Article)
	assert.Equal(t, "Stratocaster", view.Article.Name)
	assert.Equal(t, "used", view.Article.Condition)

	w = api.do(t, http.MethodPost, path, AddArticleRequest{Name: "Telecaster"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(t, http.MethodPost, path, AddArticleRequest{Name: "Amp", Condition: "broken"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/auctions/"+auction.ID, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "Stratocaster", view.Article.Name)
}

func TestGetAuction_BadAndUnknownID(t *testing.T) {
	api := newTestAPI()

	w := api.do(t, http.MethodGet, "/api/auctions/nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/auctions/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "auction not found", decodeError(t, w).Error.Message)
}
