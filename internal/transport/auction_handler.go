package transport

import (
	"errors"
	"net/http"
	"time"

	"auction-house/internal/domain"
	"auction-house/internal/middleware"
	"auction-house/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const timeFormat = time.RFC3339Nano

// MoneyRequest is a price as sent by clients. Amount is a decimal string so
// no precision is lost in JSON.
type MoneyRequest struct {
	Amount   string `json:"amount" validate:"required,numeric"`
	Currency string `json:"currency" validate:"required,iso4217"`
}

func (m MoneyRequest) toMoney() (domain.Money, error) {
	return domain.ParseMoney(m.Amount, m.Currency)
}

// CreateAuctionRequest represents the auction registration payload
type CreateAuctionRequest struct {
	OwnerID           string       `json:"owner_id" validate:"required,uuid"`
	Title             string       `json:"title" validate:"required,max=200"`
	Description       string       `json:"description" validate:"max=5000"`
	StartTime         time.Time    `json:"start_time" validate:"required"`
	EndTime           time.Time    `json:"end_time" validate:"required,gtefield=StartTime"`
	StartingPrice     MoneyRequest `json:"starting_price"`
	IsBuyNowAvailable bool         `json:"is_buy_now_available"`
}

// AddArticleRequest represents the article attached to an auction
type AddArticleRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Condition   string `json:"condition" validate:"omitempty,oneof=new used"`
}

// PlaceBidRequest represents a bid offer
type PlaceBidRequest struct {
	BidderID string       `json:"bidder_id" validate:"required,uuid"`
	Price    MoneyRequest `json:"price"`
}

// BidView is a bid as returned to clients
type BidView struct {
	ID       string       `json:"id"`
	BidderID string       `json:"bidder_id"`
	Price    domain.Money `json:"price"`
	PlacedAt string       `json:"placed_at"`
}

// AuctionView is the read model of an auction at the time of the request
type AuctionView struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"owner_id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	StartTime         string          `json:"start_time"`
	EndTime           string          `json:"end_time"`
	StartingPrice     domain.Money    `json:"starting_price"`
	CurrentPrice      domain.Money    `json:"current_price"`
	IsBuyNowAvailable bool            `json:"is_buy_now_available"`
	State             domain.State    `json:"state"`
	Running           bool            `json:"running"`
	BidCount          int             `json:"bid_count"`
	LatestBid         *BidView        `json:"latest_bid"`
	Article           *domain.Article `json:"article"`
	Version           int             `json:"version"`
}

// BidResponse is returned after a successful bid
type BidResponse struct {
	Bid     BidView     `json:"bid"`
	Auction AuctionView `json:"auction"`
}

// BidHistory lists an auction's bids in placement order
type BidHistory struct {
	AuctionID string    `json:"auction_id"`
	Bids      []BidView `json:"bids"`
}

func newBidView(b domain.Bid) BidView {
	return BidView{
		ID:       b.ID.String(),
		BidderID: b.BidderID.String(),
		Price:    b.Price,
		PlacedAt: b.PlacedAt.UTC().Format(timeFormat),
	}
}

func newAuctionView(a *domain.Auction, now time.Time) AuctionView {
	v := AuctionView{
		ID:                a.ID().String(),
		OwnerID:           a.OwnerID().String(),
		Title:             a.Title(),
		Description:       a.Description(),
		StartTime:         a.StartTime().UTC().Format(timeFormat),
		EndTime:           a.EndTime().UTC().Format(timeFormat),
		StartingPrice:     a.StartingPrice(),
		CurrentPrice:      a.Price(),
		IsBuyNowAvailable: a.IsBuyNowAvailable(),
		State:             a.State(now),
		Running:           a.IsRunning(now),
		BidCount:          a.CountBids(),
		Version:           a.Version(),
	}
	if bid, ok := a.LatestBid(); ok {
		bv := newBidView(bid)
		v.LatestBid = &bv
	}
	if art, ok := a.Article(); ok {
		v.Article = &art
	}
	return v
}

// AuctionHandler handles HTTP requests for auctions and bids
type AuctionHandler struct {
	auctionService service.AuctionService
	logger         *zap.Logger
}

// NewAuctionHandler creates a new AuctionHandler
func NewAuctionHandler(auctionService service.AuctionService, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionService: auctionService,
		logger:         logger,
	}
}

// RegisterRoutes registers all auction routes
func (h *AuctionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auctions", func(r chi.Router) {
		r.Post("/", h.CreateAuction)
		r.Route("/{auctionID}", func(r chi.Router) {
			r.Get("/", h.GetAuction)
			r.Post("/article", h.AddArticle)
			r.Post("/bids", h.PlaceBid)
			r.Get("/bids", h.ListBids)
		})
	})
}

// CreateAuction registers a new auction
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Create auction validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	price, err := req.StartingPrice.toMoney()
	if err != nil {
		respondWithServiceError(w, h.logger, "Invalid starting price", err)
		return
	}

	auction, err := h.auctionService.Register(r.Context(), service.RegisterAuctionInput{
		OwnerID:           uuid.MustParse(req.OwnerID),
		Title:             req.Title,
		Description:       req.Description,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		StartingPrice:     price,
		IsBuyNowAvailable: req.IsBuyNowAvailable,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, "Create auction failed", err)
		return
	}

	w.Header().Set("Location", "/api/auctions/"+auction.ID().String())
	middleware.RespondWithJSON(w, http.StatusCreated, newAuctionView(auction, h.auctionService.Now()))
}

// GetAuction returns the current view of an auction
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.auctionID(w, r)
	if !ok {
		return
	}

	auction, err := h.auctionService.GetAuction(r.Context(), auctionID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to get auction", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newAuctionView(auction, h.auctionService.Now()))
}

// AddArticle attaches the item being sold. A second attachment is a 409.
func (h *AuctionHandler) AddArticle(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.auctionID(w, r)
	if !ok {
		return
	}

	var req AddArticleRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	article, err := domain.NewArticle(req.Name, req.Description, req.Condition)
	if err != nil {
		respondWithServiceError(w, h.logger, "Invalid article", err)
		return
	}

	auction, err := h.auctionService.AddArticle(r.Context(), auctionID, article)
	if err != nil {
		respondWithServiceError(w, h.logger, "Add article failed", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newAuctionView(auction, h.auctionService.Now()))
}

// PlaceBid records a bid. A bid that does not beat the current price is a
// 409 whose details carry the price to beat.
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.auctionID(w, r)
	if !ok {
		return
	}

	var req PlaceBidRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	price, err := req.Price.toMoney()
	if err != nil {
		respondWithServiceError(w, h.logger, "Invalid bid price", err)
		return
	}

	auction, bid, err := h.auctionService.PlaceBid(r.Context(), auctionID, uuid.MustParse(req.BidderID), price)
	if err != nil {
		var tooLow *domain.BidTooLowError
		if errors.As(err, &tooLow) {
			h.logger.Debug("Bid rejected", zap.String("auction_id", auctionID.String()), zap.Error(err))
			status, text := statusFor(err)
			middleware.RespondWithErrorDetails(w, status, text, map[string]interface{}{
				"current_price": tooLow.Current,
			})
			return
		}
		respondWithServiceError(w, h.logger, "Place bid failed", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, BidResponse{
		Bid:     newBidView(bid),
		Auction: newAuctionView(auction, h.auctionService.Now()),
	})
}

// ListBids returns the bid history in placement order
func (h *AuctionHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	auctionID, ok := h.auctionID(w, r)
	if !ok {
		return
	}

	auction, err := h.auctionService.GetAuction(r.Context(), auctionID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to list bids", err)
		return
	}

	bids := auction.Bids()
	out := BidHistory{AuctionID: auctionID.String(), Bids: make([]BidView, 0, len(bids))}
	for _, b := range bids {
		out.Bids = append(out.Bids, newBidView(b))
	}
	middleware.RespondWithJSON(w, http.StatusOK, out)
}

func (h *AuctionHandler) auctionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid auction ID")
		return uuid.Nil, false
	}
	return id, true
}
