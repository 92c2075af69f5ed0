package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"gitlab.com/dirk.krummacker/address-book/internal/model"
)

// The numbers of the phones every contact gets. They differ, otherwise the second phone would be
// rejected as a duplicate.
const (
	homePhone   = "+39 999 777 555"
	mobilePhone = "+39 999 777 556"
)

// Usage example on the command line:
// > go run main.go -server=http://localhost:8080
func main() {
	server := flag.String("server", "http://localhost:8080", "the base URL of the contacts service")
	flag.Parse()

	fmt.Println()
	fmt.Println("  Elements      POST     PHONE       PUT       GET    LETTER    DELETE ")
	fmt.Println("-----------------------------------------------------------------------")
	sizes := []int{100, 500, 1000, 5000}
	for _, loops := range sizes {
		fmt.Printf("%10d", loops)
		ids := make([]int64, 0, loops)
		{
			// POST requests for contacts
			var duration int64
			for i := 0; i < loops; i++ {
				id, d := createContact(*server, loops, i)
				ids = append(ids, id)
				duration += d
			}
			printAverage(duration, loops)
		}
		rand.Shuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})
		{
			// POST requests for phones
			f := func(id int64) int64 {
				body, err := json.Marshal(newMobilePhone())
				if err != nil {
					panic(err)
				}
				_, d := sendRequest(http.MethodPost, contactURL(*server, id)+"/phones", bytes.NewReader(body))
				return d
			}
			callInLoop(ids, f)
		}
		{
			// PUT requests
			f := func(id int64) int64 {
				body := []byte(`{"firstname": "Marcus Aurelius"}`)
				_, d := sendRequest(http.MethodPut, contactURL(*server, id), bytes.NewReader(body))
				return d
			}
			callInLoop(ids, f)
		}
		{
			// GET requests
			f := func(id int64) int64 {
				_, d := sendRequest(http.MethodGet, contactURL(*server, id), nil)
				return d
			}
			callInLoop(ids, f)
		}
		{
			// GET requests by letter, fewer of them because each one returns many contacts
			var duration int64
			letters := []string{"A", "B", "C", "D", "E"}
			for _, letter := range letters {
				_, d := sendRequest(http.MethodGet, *server+"/contacts?letter="+letter, nil)
				duration += d
			}
			printAverage(duration, len(letters))
		}
		{
			// DELETE requests
			f := func(id int64) int64 {
				_, d := sendRequest(http.MethodDelete, contactURL(*server, id), nil)
				return d
			}
			callInLoop(ids, f)
		}
		fmt.Println()
	}
}

// createContact posts a contact with a home phone and returns its id and the duration of the call.
func createContact(server string, loops int, i int) (int64, int64) {
	jsonBody, err := json.Marshal(newContact(time.Now().Unix(), loops, i))
	if err != nil {
		panic(err)
	}
	resBody, duration := sendRequest(http.MethodPost, server+"/contacts", bytes.NewReader(jsonBody))
	var created model.Contact
	if err := json.Unmarshal(resBody, &created); err != nil {
		fmt.Println("could not unmarshal JSON", err)
		panic(err)
	}
	return created.Id, duration
}

// newContact builds the i-th contact of a run with a home phone. The last names start with one of
// the letters A to E.
func newContact(run int64, loops int, i int) model.Contact {
	return model.Contact{
		FirstName: "Marcus",
		LastName:  fmt.Sprintf("%c-Antonius-%d", 'A'+rune(i%5), i),
		Email:     fmt.Sprintf("marcus.antonius.%d.%d.%d@example.com", run, loops, i),
		Phones:    []model.Phone{{PhoneType: "home", Phone: homePhone}},
	}
}

// newMobilePhone builds the phone that is added to every contact after its creation.
func newMobilePhone() model.Phone {
	return model.Phone{PhoneType: "mobile", Phone: mobilePhone}
}

func contactURL(server string, id int64) string {
	return fmt.Sprintf("%s/contacts/%d", server, id)
}

func callInLoop(ids []int64, f func(id int64) int64) {
	var duration int64
	for _, id := range ids {
		duration += f(id)
	}
	printAverage(duration, len(ids))
}

// printAverage prints the average duration in microseconds.
func printAverage(duration int64, count int) {
	fmt.Printf("%10d", duration/int64(count*1000))
}

func sendRequest(method string, requestURL string, bodyReader io.Reader) ([]byte, int64) {
	req, err := http.NewRequest(method, requestURL, bodyReader)
	if err != nil {
		fmt.Println("could not create request", err)
		panic(err)
	}
	req.Header.Set("Content-Type", "application/json")
	before := time.Now().UnixNano()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("error making http request", err)
		panic(err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		fmt.Println("could not read response body", err)
		panic(err)
	}
	after := time.Now().UnixNano()
	return resBody, after - before
}
