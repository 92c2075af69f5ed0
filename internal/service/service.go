package service

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
	"gitlab.com/dirk.krummacker/address-book/internal/search"
	"gitlab.com/dirk.krummacker/address-book/internal/store"
	"gitlab.com/dirk.krummacker/address-book/internal/validation"
	"go.uber.org/zap"
)

// allowedAscending are the allowed values for the 'ascending' URL parameter.
var allowedAscending = []string{"true", "false"}

// Service answers the REST API calls for contacts and their phones.
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// New creates the service on top of the contacts store.
func New(s *store.Store, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logger}
}

// SetupHttpRouter initializes the REST API router and registers all endpoints. If ginLogging is
// false then HTTP requests are not logged.
func (s *Service) SetupHttpRouter(ginLogging bool) *gin.Engine {
	var router *gin.Engine
	if ginLogging {
		router = gin.Default()
	} else {
		s.logger.Info("turning off HTTP request logging")
		router = gin.New()
		router.Use(gin.Recovery())
	}
	router.GET("/health", s.health)
	router.GET("/contacts", s.findContacts)
	router.POST("/contacts", s.createContact)
	router.GET("/contacts/:id", s.findContactByID)
	router.PUT("/contacts/:id", s.updateContactByID)
	router.DELETE("/contacts/:id", s.deleteContactByID)
	router.GET("/contacts/:id/phones", s.findPhonesOfContact)
	router.POST("/contacts/:id/phones", s.createPhone)
	router.DELETE("/contacts/:id/phones/:phoneId", s.deletePhoneByID)
	return router
}

// health responds with the OK status code if the database is reachable, and with SERVICE
// UNAVAILABLE otherwise.
//
// Example REST API call:
//
//	> curl http://localhost:8080/health
func (s *Service) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("database health check failed", zap.Error(err))
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "healthy"})
}

// findContacts responds with a list of contacts as JSON. Every contact carries its phones.
//
// The URL parameter 'letter' returns the contacts whose last name starts with the given letter or
// prefix, sorted by last name. The match is case-sensitive. It cannot be combined with 'orderby'
// and 'ascending'.
//
// The URL parameters 'firstname' and 'lastname' are interpreted as the beginning of the first name
// or last name of the contact.
//
// The URL parameter 'limit' specifies how many contacts matching the search criteria are returned.
// The URL parameter 'offset' specifies how many items from the sorted list of results are skipped
// in the beginning. Together with the 'limit' parameter, one can implement search result paging.
//
// The URL parameter 'orderby' specifies the contact property by which the results shall be sorted.
// Valid values are 'id', 'firstname', 'lastname', and 'email'. If this URL parameter is not
// specified, the contacts will be sorted by id.
//
// If the URL parameter 'ascending' is set to 'false' then the sort order is reversed, starting
// with the 'highest' value. If it is set to 'true', or if this URL parameter is omitted, the
// result starts with the lowest value.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?letter=J"
//	> curl "http://localhost:8080/contacts?firstname=Ji"
//	> curl "http://localhost:8080/contacts?lastname=Smi"
//	> curl "http://localhost:8080/contacts?limit=20&offset=60"
//	> curl "http://localhost:8080/contacts?orderby=email&ascending=false"
func (s *Service) findContacts(c *gin.Context) {
	limit, offset, successLimitAndOffset := parseLimitAndOffset(c)
	if !successLimitAndOffset {
		return
	}
	var contacts []model.Contact
	var err error
	if letter, byLetter := c.GetQuery("letter"); byLetter {
		if c.Query("orderby") != "" || c.Query("ascending") != "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "letter cannot be combined with orderby or ascending"})
			return
		}
		contacts, err = s.findContactsByLetter(c, letter, limit, offset)
	} else {
		orderby, ascending, successOrderbyAndAscending := parseOrderbyAndAscending(c)
		if !successOrderbyAndAscending {
			return
		}
		contacts, err = s.store.FindContacts(c.Request.Context(), store.Filter{
			FirstName: c.Query("firstname"),
			LastName:  c.Query("lastname"),
			OrderBy:   orderby,
			Ascending: ascending,
			Limit:     limit,
			Offset:    offset,
		})
	}
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if len(contacts) == 0 {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	} else {
		c.IndentedJSON(http.StatusOK, contacts)
	}
}

// findContactsByLetter filters all contacts by the initial of their last name and returns the
// requested page of the sorted result.
func (s *Service) findContactsByLetter(c *gin.Context, letter string, limit int, offset int) ([]model.Contact, error) {
	all, err := s.store.AllContacts(c.Request.Context())
	if err != nil {
		return nil, err
	}
	matches := search.ByLetter(all, letter)
	if offset >= len(matches) {
		return nil, nil
	}
	matches = matches[offset:]
	if limit > 0 && limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

// parseLimitAndOffset inspects the URL parameters and determines values for limit and offset of
// the result set. A limit of zero means that there is no limit.
func parseLimitAndOffset(c *gin.Context) (limit int, offset int, success bool) {
	var errConv error
	if limitAsString := c.Query("limit"); limitAsString != "" {
		limit, errConv = strconv.Atoi(limitAsString)
		if errConv != nil || limit < 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid limit parameter"})
			return 0, 0, false
		}
	}
	if offsetAsString := c.Query("offset"); offsetAsString != "" {
		offset, errConv = strconv.Atoi(offsetAsString)
		if errConv != nil || offset < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid offset parameter"})
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// parseOrderbyAndAscending inspects the URL parameters and determines values for the orderby and
// ascending values of the result set.
func parseOrderbyAndAscending(c *gin.Context) (orderby string, ascending bool, success bool) {
	orderby = c.Query("orderby")
	if orderby == "" {
		orderby = "id"
	}
	if !contains(store.AllowedOrderBy, orderby) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid orderby parameter"})
		return "", false, false
	}
	ascendingAsString := c.Query("ascending")
	if ascendingAsString == "" {
		ascendingAsString = "true"
	}
	if !contains(allowedAscending, ascendingAsString) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid ascending parameter"})
		return orderby, false, false
	}
	return orderby, ascendingAsString == "true", true
}

// contains returns true if a string is present in a slice.
func contains(slice []string, str string) bool {
	for _, v := range slice {
		if v == str {
			return true
		}
	}
	return false
}

// createContact validates the contact specified in the request's JSON and inserts it into the
// database, together with the phones it carries. It responds with the full contact data including
// the newly assigned ids. A contact that fails validation is answered with the UNPROCESSABLE ENTITY
// status code and the messages per field.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"firstname": "Hans", "lastname": "Wurst", "email": "hans@example.com", "phones": [{"phone_type": "home", "phone": "0815"}]}'
func (s *Service) createContact(c *gin.Context) {
	var newContact model.Contact
	if err := c.ShouldBindJSON(&newContact); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	contact, err := s.store.CreateContact(c.Request.Context(), newContact)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	s.logger.Info("contact created", zap.Int64("id", contact.Id), zap.String("name", contact.FullName()))
	c.IndentedJSON(http.StatusCreated, contact)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact with its phones as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56
func (s *Service) findContactByID(c *gin.Context) {
	id, success := parseID(c, "id")
	if !success {
		return
	}
	contact, err := s.store.Contact(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// updateContactByID updates the contact whose ID value matches the id parameter of the request
// URL, updates the values specified in the JSON (and only those), and finally responds with the
// new version of the contact. The updated contact must pass the same validation as a new one.
//
// Example REST API calls:
//
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"email": "hans.wurst@example.com"}'
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"firstname": "Johann"}'
func (s *Service) updateContactByID(c *gin.Context) {
	id, success := parseID(c, "id")
	if !success {
		return
	}
	var submitted model.ContactUpdate
	if errBind := c.ShouldBindJSON(&submitted); errBind != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}

	// It only makes sense to continue if we have at least one value to update.
	if submitted.IsEmpty() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "no values to be updated"})
		return
	}

	contact, err := s.store.UpdateContact(c.Request.Context(), id, submitted)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request URL
// from the database, together with all of its phones.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "DELETE"
func (s *Service) deleteContactByID(c *gin.Context) {
	id, success := parseID(c, "id")
	if !success {
		return
	}
	if err := s.store.DeleteContact(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "contact deleted"})
}

// findPhonesOfContact responds with the phones of the contact, ordered by id.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56/phones
func (s *Service) findPhonesOfContact(c *gin.Context) {
	id, success := parseID(c, "id")
	if !success {
		return
	}
	phones, err := s.store.Phones(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, phones)
}

// createPhone adds the phone specified in the request's JSON to the contact. A contact cannot
// have the same number twice, but different contacts may share a number.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56/phones --request "POST" --include --header "Content-Type: application/json" --data '{"phone_type": "mobile", "phone": "785-555-1234"}'
func (s *Service) createPhone(c *gin.Context) {
	id, success := parseID(c, "id")
	if !success {
		return
	}
	var newPhone model.Phone
	if err := c.ShouldBindJSON(&newPhone); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid JSON"})
		return
	}
	newPhone.ContactId = id
	phone, err := s.store.CreatePhone(c.Request.Context(), newPhone)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, phone)
}

// deletePhoneByID deletes a phone of the contact.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56/phones/3 --request "DELETE"
func (s *Service) deletePhoneByID(c *gin.Context) {
	contactID, success := parseID(c, "id")
	if !success {
		return
	}
	phoneID, success := parseID(c, "phoneId")
	if !success {
		return
	}
	if err := s.store.DeletePhone(c.Request.Context(), contactID, phoneID); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"message": "phone deleted"})
}

// parseID reads a numeric id from the URL path. Invalid ids are answered with the NOT FOUND status
// code without reaching out to the database.
func parseID(c *gin.Context, param string) (int64, bool) {
	id, errConv := strconv.ParseInt(c.Param(param), 10, 64)
	if errConv != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid " + param + " parameter"})
		return 0, false
	}
	return id, true
}

// abortWithError answers the request according to the kind of error. Validation failures carry
// the messages per field, unknown records yield NOT FOUND, and anything else is logged as an
// internal error.
func (s *Service) abortWithError(c *gin.Context, err error) {
	var validationErr *validation.Error
	switch {
	case errors.As(err, &validationErr):
		s.logger.Debug("validation failed",
			zap.String("path", c.FullPath()),
			zap.Any("errors", validationErr.Errors))
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"errors": validationErr.Errors})
	case errors.Is(err, store.ErrContactNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
	case errors.Is(err, store.ErrPhoneNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "phone not found"})
	default:
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}
