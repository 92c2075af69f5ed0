// Package store persists contacts and their phones in a MySQL database. Every write validates the
// candidate record inside the same transaction that commits it, so that two concurrent requests
// cannot both pass a uniqueness check.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"gitlab.com/dirk.krummacker/address-book/internal/model"
	"gitlab.com/dirk.krummacker/address-book/internal/validation"
)

// maxInt is the largest possible int value
const maxInt = int(^uint(0) >> 1)

// duplicateEntry is the MySQL error number for a violated unique index.
const duplicateEntry = 1062

// lockDeadlock is the MySQL error number for a transaction that was rolled back to resolve a
// deadlock.
const lockDeadlock = 1213

// deadlockAttempts is how often a write transaction is run before a deadlock is given up on.
const deadlockAttempts = 2

// phoneBatchSize is the maximum number of contact ids bound into one phone query. MySQL allows at
// most 65535 placeholders per statement.
var phoneBatchSize = 1000

var (
	// ErrContactNotFound is returned if no contact has the requested id.
	ErrContactNotFound = errors.New("contact not found")
	// ErrPhoneNotFound is returned if the contact has no phone with the requested id.
	ErrPhoneNotFound = errors.New("phone not found")
)

// AllowedOrderBy are the contact properties by which a contact list can be sorted.
var AllowedOrderBy = []string{"id", "firstname", "lastname", "email"}

// likeEscaper escapes the wildcard characters of a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Filter selects and orders a page of contacts. FirstName and LastName are prefixes; empty
// prefixes match every contact.
type Filter struct {
	FirstName string
	LastName  string
	OrderBy   string
	Ascending bool
	Limit     int
	Offset    int
}

// Store is the contacts database.
type Store struct {
	db *sqlx.DB

	// selectContactWhereId is a prepared statement for selecting a contact with a given id.
	selectContactWhereId *sqlx.Stmt

	// selectPhonesWhereContactId is a prepared statement for selecting the phones of a contact.
	selectPhonesWhereContactId *sqlx.Stmt
}

// CreateDatabase opens a MySQL database handle for the given data source name.
func CreateDatabase(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	return sqlDB, nil
}

// New wraps the specified sql database and prepares all statements. The database argument can be
// a real database for production use or a mock database within unit tests.
func New(sqlDB *sql.DB) (*Store, error) {
	var err error
	s := &Store{db: sqlx.NewDb(sqlDB, "mysql")}
	s.selectContactWhereId, err = s.db.Preparex(`SELECT * FROM contacts WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare contact select: %w", err)
	}
	s.selectPhonesWhereContactId, err = s.db.Preparex(`SELECT * FROM phones WHERE contact_id = ? ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("could not prepare phone select: %w", err)
	}
	return s, nil
}

// Close releases the prepared statements and the database.
func (s *Store) Close() error {
	return errors.Join(
		s.selectContactWhereId.Close(),
		s.selectPhonesWhereContactId.Close(),
		s.db.Close(),
	)
}

// Ping checks if the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// AllContacts returns every contact with its phones, ordered by id.
func (s *Store) AllContacts(ctx context.Context) ([]model.Contact, error) {
	return s.FindContacts(ctx, Filter{OrderBy: "id", Ascending: true})
}

// FindContacts returns the contacts matching the filter, each with its phones. An unknown OrderBy
// value is rejected, a Limit of zero means no limit.
func (s *Store) FindContacts(ctx context.Context, filter Filter) ([]model.Contact, error) {
	if filter.OrderBy == "" {
		filter.OrderBy = "id"
	}
	if !slices.Contains(AllowedOrderBy, filter.OrderBy) {
		return nil, fmt.Errorf("invalid order by column %q", filter.OrderBy)
	}
	if filter.Limit <= 0 {
		filter.Limit = maxInt
	}
	direction := "ASC"
	if !filter.Ascending {
		direction = "DESC"
	}
	query := fmt.Sprintf(
		`SELECT * FROM contacts WHERE firstname LIKE ? AND lastname LIKE ? ORDER BY %s %s LIMIT ? OFFSET ?`,
		filter.OrderBy, direction)
	var contacts []model.Contact
	err := s.db.SelectContext(ctx, &contacts, query,
		likeEscaper.Replace(filter.FirstName)+"%",
		likeEscaper.Replace(filter.LastName)+"%",
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("could not select contacts: %w", err)
	}
	if err := s.attachPhones(ctx, contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// attachPhones loads the phones of all given contacts with a single query.
func (s *Store) attachPhones(ctx context.Context, contacts []model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(contacts))
	byId := make(map[int64]int, len(contacts))
	for i, contact := range contacts {
		ids = append(ids, contact.Id)
		byId[contact.Id] = i
	}
	for batch := range slices.Chunk(ids, phoneBatchSize) {
		query, args, err := sqlx.In(`SELECT * FROM phones WHERE contact_id IN (?) ORDER BY contact_id, id`, batch)
		if err != nil {
			return fmt.Errorf("could not build phone select: %w", err)
		}
		var phones []model.Phone
		if err := s.db.SelectContext(ctx, &phones, s.db.Rebind(query), args...); err != nil {
			return fmt.Errorf("could not select phones: %w", err)
		}
		for _, phone := range phones {
			if i, ok := byId[phone.ContactId]; ok {
				contacts[i].Phones = append(contacts[i].Phones, phone)
			}
		}
	}
	return nil
}

// Contact returns the contact with the given id together with its phones.
func (s *Store) Contact(ctx context.Context, id int64) (model.Contact, error) {
	var contact model.Contact
	err := s.selectContactWhereId.GetContext(ctx, &contact, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("could not select contact %d: %w", id, err)
	}
	err = s.selectPhonesWhereContactId.SelectContext(ctx, &contact.Phones, id)
	if err != nil {
		return model.Contact{}, fmt.Errorf("could not select phones of contact %d: %w", id, err)
	}
	return contact, nil
}

// CreateContact validates and inserts a new contact together with the phones it carries. The ids
// of the candidate and its phones are ignored and assigned by the database. Either the contact and
// all its phones are stored, or nothing is. A failed validation is returned as *validation.Error.
func (s *Store) CreateContact(ctx context.Context, candidate model.Contact) (model.Contact, error) {
	return retryOnDeadlock(func() (model.Contact, error) {
		return s.createContact(ctx, candidate)
	})
}

func (s *Store) createContact(ctx context.Context, candidate model.Contact) (model.Contact, error) {
	candidate.Id = 0
	phones := make([]model.Phone, 0, len(candidate.Phones))
	for _, phone := range candidate.Phones {
		phones = append(phones, model.Phone{PhoneType: phone.PhoneType, Phone: phone.Phone})
	}
	candidate.Phones = nil

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Contact{}, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	sameEmail, err := lockContactsWithEmail(ctx, tx, candidate.Email)
	if err != nil {
		return model.Contact{}, err
	}
	errs := validation.ValidateContact(candidate, sameEmail)
	for i, phone := range phones {
		errs.Merge(validation.ValidatePhone(phone, phones[:i]))
	}
	if err := errs.Err(); err != nil {
		return model.Contact{}, err
	}

	result, err := tx.NamedExecContext(ctx,
		`INSERT INTO contacts (firstname, lastname, email) VALUES (:firstname, :lastname, :email)`,
		&candidate)
	if err != nil {
		return model.Contact{}, duplicateOr(err, "email", "could not insert contact")
	}
	candidate.Id, err = result.LastInsertId()
	if err != nil {
		return model.Contact{}, fmt.Errorf("could not read contact id: %w", err)
	}
	for i := range phones {
		phones[i].ContactId = candidate.Id
		if err := insertPhone(ctx, tx, &phones[i]); err != nil {
			return model.Contact{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Contact{}, fmt.Errorf("could not commit contact: %w", err)
	}
	candidate.Phones = phones
	return candidate, nil
}

// UpdateContact applies a partial update to the contact with the given id and returns the
// updated contact with its phones. The merged contact is validated like a new one, except that it
// does not conflict with its own stored email.
func (s *Store) UpdateContact(ctx context.Context, id int64, update model.ContactUpdate) (model.Contact, error) {
	return retryOnDeadlock(func() (model.Contact, error) {
		return s.updateContact(ctx, id, update)
	})
}

func (s *Store) updateContact(ctx context.Context, id int64, update model.ContactUpdate) (model.Contact, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Contact{}, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current model.Contact
	err = tx.GetContext(ctx, &current, `SELECT * FROM contacts WHERE id = ? FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, ErrContactNotFound
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("could not lock contact %d: %w", id, err)
	}
	candidate := update.ApplyTo(current)
	sameEmail, err := lockContactsWithEmail(ctx, tx, candidate.Email)
	if err != nil {
		return model.Contact{}, err
	}
	if err := validation.ValidateContact(candidate, sameEmail).Err(); err != nil {
		return model.Contact{}, err
	}

	_, err = tx.NamedExecContext(ctx,
		`UPDATE contacts SET firstname = :firstname, lastname = :lastname, email = :email WHERE id = :id`,
		&candidate)
	if err != nil {
		return model.Contact{}, duplicateOr(err, "email", "could not update contact")
	}
	if err := tx.SelectContext(ctx, &candidate.Phones, `SELECT * FROM phones WHERE contact_id = ? ORDER BY id`, id); err != nil {
		return model.Contact{}, fmt.Errorf("could not select phones of contact %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Contact{}, fmt.Errorf("could not commit contact: %w", err)
	}
	return candidate, nil
}

// DeleteContact deletes the contact with the given id and all of its phones.
func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM phones WHERE contact_id = ?`, id); err != nil {
		return fmt.Errorf("could not delete phones of contact %d: %w", id, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete contact %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read deleted rows: %w", err)
	}
	if rowsAffected == 0 {
		return ErrContactNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit deletion: %w", err)
	}
	return nil
}

// Phones returns the phones of the contact with the given id, ordered by id.
func (s *Store) Phones(ctx context.Context, contactId int64) ([]model.Phone, error) {
	contact, err := s.Contact(ctx, contactId)
	if err != nil {
		return nil, err
	}
	if contact.Phones == nil {
		return []model.Phone{}, nil
	}
	return contact.Phones, nil
}

// CreatePhone validates and inserts a new phone for the contact referenced by the candidate's
// contact id. The owning contact is locked while its phones are compared with the candidate.
func (s *Store) CreatePhone(ctx context.Context, candidate model.Phone) (model.Phone, error) {
	candidate.Id = 0
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Phone{}, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owner model.Contact
	err = tx.GetContext(ctx, &owner, `SELECT * FROM contacts WHERE id = ? FOR UPDATE`, candidate.ContactId)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Phone{}, ErrContactNotFound
	}
	if err != nil {
		return model.Phone{}, fmt.Errorf("could not lock contact %d: %w", candidate.ContactId, err)
	}
	var siblings []model.Phone
	err = tx.SelectContext(ctx, &siblings, `SELECT * FROM phones WHERE contact_id = ? ORDER BY id`, owner.Id)
	if err != nil {
		return model.Phone{}, fmt.Errorf("could not select phones of contact %d: %w", owner.Id, err)
	}
	if err := validation.ValidatePhone(candidate, siblings).Err(); err != nil {
		return model.Phone{}, err
	}
	if err := insertPhone(ctx, tx, &candidate); err != nil {
		return model.Phone{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Phone{}, fmt.Errorf("could not commit phone: %w", err)
	}
	return candidate, nil
}

// DeletePhone deletes a phone of a contact.
func (s *Store) DeletePhone(ctx context.Context, contactId int64, phoneId int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM phones WHERE id = ? AND contact_id = ?`, phoneId, contactId)
	if err != nil {
		return fmt.Errorf("could not delete phone %d: %w", phoneId, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read deleted rows: %w", err)
	}
	if rowsAffected == 0 {
		return ErrPhoneNotFound
	}
	return nil
}

// lockContactsWithEmail selects the contacts using the email address and locks them, or the gap
// where such a contact would be inserted, until the transaction ends. Gap locks do not exclude each
// other, so two transactions inserting the same new email deadlock, and the one rolled back by the
// database is run again by retryOnDeadlock. The second run sees the committed contact.
func lockContactsWithEmail(ctx context.Context, tx *sqlx.Tx, email string) ([]model.Contact, error) {
	var contacts []model.Contact
	err := tx.SelectContext(ctx, &contacts, `SELECT * FROM contacts WHERE email = ? FOR UPDATE`, email)
	if err != nil {
		return nil, fmt.Errorf("could not select contacts by email: %w", err)
	}
	return contacts, nil
}

// insertPhone inserts a phone and sets its new id.
func insertPhone(ctx context.Context, tx *sqlx.Tx, phone *model.Phone) error {
	result, err := tx.NamedExecContext(ctx,
		`INSERT INTO phones (contact_id, phone_type, phone) VALUES (:contact_id, :phone_type, :phone)`,
		phone)
	if err != nil {
		return duplicateOr(err, "phone", "could not insert phone")
	}
	phone.Id, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("could not read phone id: %w", err)
	}
	return nil
}

// retryOnDeadlock runs the transaction again if the database rolled it back to resolve a deadlock.
func retryOnDeadlock[T any](run func() (T, error)) (T, error) {
	var result T
	var err error
	for range deadlockAttempts {
		result, err = run()
		if !isDeadlock(err) {
			return result, err
		}
	}
	return result, err
}

// isDeadlock returns true if the error is a MySQL deadlock.
func isDeadlock(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == lockDeadlock
}

// duplicateOr turns a violated unique index into a DuplicateValue validation error for the field.
// Any other error is wrapped with the message.
func duplicateOr(err error, field string, message string) error {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == duplicateEntry {
		errs := validation.ErrorSet{}
		errs.Add(field, validation.DuplicateValue)
		return errs.Err()
	}
	return fmt.Errorf("%s: %w", message, err)
}
