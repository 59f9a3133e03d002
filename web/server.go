package web

import (
	"log"
	"net/http"
	"os"
	"path"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/mogaika/armature_poser/armature"
	"github.com/mogaika/armature_poser/bvh"
	"github.com/mogaika/armature_poser/status"
)

// The served armature and, when it came from a BVH file, its importer.
// Every handler holds serverLock while touching them.
var (
	serverLock     sync.Mutex
	ServerArmature *armature.Armature
	ServerImporter *bvh.Importer
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SetArmature replaces the served armature. im may be nil.
func SetArmature(a *armature.Armature, im *bvh.Importer) {
	serverLock.Lock()
	defer serverLock.Unlock()
	a.OnChange(status.ArmatureChanged)
	ServerArmature = a
	ServerImporter = im
}

func NewRouter(webPath string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/json/armature", HandlerAjaxArmature)
	r.HandleFunc("/json/bones/{id}", HandlerAjaxBone)
	r.HandleFunc("/json/encodings", HandlerAjaxEncodings)
	r.HandleFunc("/action/encoding/{name}", HandlerActionEncoding)
	r.HandleFunc("/action/mode/{mode}", HandlerActionMode)
	r.HandleFunc("/action/frame/{frame}", HandlerActionFrame)
	r.HandleFunc("/action/rotate/{id}", HandlerActionRotate)
	r.HandleFunc("/action/linkfirst/{value}", HandlerActionLinkFirst)
	r.HandleFunc("/action/reset", HandlerActionReset)
	r.HandleFunc("/dump/gltf", HandlerDumpGLTF)
	r.HandleFunc("/dump/fbx", HandlerDumpFbx)
	r.HandleFunc("/dump/records", HandlerDumpRecords)
	r.HandleFunc("/dump/armature", HandlerDumpArmature)
	r.HandleFunc("/upload/records", HandlerUploadRecords).Methods("POST")
	r.HandleFunc("/ws/status", HandlerStatus)

	if webPath != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(path.Join(webPath, "data"))))
	}
	return r
}

func StartServer(addr string, a *armature.Armature, im *bvh.Importer, webPath string) error {
	SetArmature(a, im)

	h := handlers.RecoveryHandler()(NewRouter(webPath))
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Printf("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}

func HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	status.NewClient(conn)
}
